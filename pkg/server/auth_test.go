package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/saturn/pkg/config"
)

func authConfig() *config.ServerConfig {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{
		Enabled: true,
		Header:  config.DefaultServerAuthHeader,
		Keys: []config.APIKeyConfig{
			{Name: "ops", Key: "secret"},
			{Name: "retired", Key: "old", Disabled: true},
		},
		PublicPaths: []string{"/health"},
	}
	return cfg
}

func TestAPIKeyValidator(t *testing.T) {
	v := NewAPIKeyValidator(authConfig().Auth.Keys)

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{name: "valid", key: "secret"},
		{name: "unknown", key: "nope", wantErr: ErrInvalidAPIKey},
		{name: "disabled", key: "old", wantErr: ErrDisabledAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := v.Validate(tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && info.Name != "ops" {
				t.Errorf("Name = %q, want ops", info.Name)
			}
		})
	}

	v.Replace([]config.APIKeyConfig{{Name: "new", Key: "rotated"}})
	if _, err := v.Validate("secret"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("Validate() after Replace error = %v, want %v", err, ErrInvalidAPIKey)
	}
	if _, err := v.Validate("rotated"); err != nil {
		t.Errorf("Validate() after Replace error = %v, want nil", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	var gotName string
	srv := New("", authConfig(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotName, _ = GetAPIKeyName(r.Context())
		w.WriteHeader(http.StatusOK)
	}), discardLogger())
	handler := srv.Handler()

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantName   string
	}{
		{name: "valid bearer", path: "/metrics", header: "Bearer secret", wantStatus: http.StatusOK, wantName: "ops"},
		{name: "missing key", path: "/metrics", wantStatus: http.StatusUnauthorized},
		{name: "missing scheme", path: "/metrics", header: "secret", wantStatus: http.StatusUnauthorized},
		{name: "unknown key", path: "/metrics", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "disabled key", path: "/metrics", header: "Bearer old", wantStatus: http.StatusUnauthorized},
		{name: "public path", path: "/health", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotName = ""
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotName != tt.wantName {
				t.Errorf("key name = %q, want %q", gotName, tt.wantName)
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("WWW-Authenticate header not set")
			}
		})
	}
}

func TestAuthMiddleware_CustomHeader(t *testing.T) {
	cfg := authConfig()
	cfg.Auth.Header = "X-API-Key"
	srv := New("", cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
