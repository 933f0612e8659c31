package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChecker_CheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no checks",
			checks:     map[string]CheckFunc{},
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"policies": func(ctx context.Context) error { return nil },
				"journal":  func(ctx context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"policies": func(ctx context.Context) error { return nil },
				"journal":  func(ctx context.Context) error { return errors.New("database is locked") },
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"journal"},
		},
		{
			name: "timeout",
			checks: map[string]CheckFunc{
				"manager": func(ctx context.Context) error {
					<-ctx.Done()
					time.Sleep(10 * time.Millisecond)
					return nil
				},
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"manager"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(50 * time.Millisecond)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("len(Checks) = %d, want %d", len(status.Checks), len(tt.checks))
			}
			for _, name := range tt.wantFailed {
				if status.Checks[name].Status != StatusUnhealthy {
					t.Errorf("check %q = %q, want unhealthy", name, status.Checks[name].Status)
				}
			}
		})
	}
}

func TestChecker_ListChecks(t *testing.T) {
	checker := New(0)
	if checker.checkTimeout != 5*time.Second {
		t.Errorf("checkTimeout = %v, want 5s", checker.checkTimeout)
	}

	checker.RegisterCheck("policies", func(ctx context.Context) error { return nil })
	checker.RegisterCheck("journal", func(ctx context.Context) error { return nil })
	checker.RegisterCheck("journal", func(ctx context.Context) error { return nil })

	names := checker.ListChecks()
	if len(names) != 2 || names[0] != "journal" || names[1] != "policies" {
		t.Errorf("ListChecks() = %v, want [journal policies]", names)
	}
}

func TestHandlers(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("journal", func(ctx context.Context) error { return errors.New("closed") })

	mux := http.NewServeMux()
	Register(mux, checker, "1.0.0", "abc123", "2026-01-01")

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{name: "liveness", method: http.MethodGet, path: "/health", wantCode: http.StatusOK},
		{name: "readiness degraded", method: http.MethodGet, path: "/ready", wantCode: http.StatusServiceUnavailable},
		{name: "version", method: http.MethodGet, path: "/version", wantCode: http.StatusOK},
		{name: "method not allowed", method: http.MethodPost, path: "/health", wantCode: http.StatusMethodNotAllowed},
		{name: "head liveness", method: http.MethodHead, path: "/health", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("Decode() error = %v, want nil", err)
	}
	if info.Version != "1.0.0" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("version info = %+v", info)
	}
}
