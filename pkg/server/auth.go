package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"mercator-hq/saturn/pkg/config"
)

var (
	// ErrMissingAPIKey is returned when a request carries no API key.
	ErrMissingAPIKey = errors.New("no API key found")

	// ErrInvalidAPIKey is returned for an unknown API key.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrDisabledAPIKey is returned for a disabled API key.
	ErrDisabledAPIKey = errors.New("API key disabled")
)

// APIKeyValidator validates API keys against a configured set of keys.
type APIKeyValidator struct {
	mu   sync.RWMutex
	keys map[string]config.APIKeyConfig
}

// NewAPIKeyValidator creates a validator accepting keys.
func NewAPIKeyValidator(keys []config.APIKeyConfig) *APIKeyValidator {
	v := &APIKeyValidator{keys: make(map[string]config.APIKeyConfig, len(keys))}
	for _, k := range keys {
		v.keys[k.Key] = k
	}
	return v
}

// Validate returns the configuration of key.
func (v *APIKeyValidator) Validate(key string) (config.APIKeyConfig, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	info, ok := v.keys[key]
	if !ok {
		return config.APIKeyConfig{}, ErrInvalidAPIKey
	}
	if info.Disabled {
		return config.APIKeyConfig{}, ErrDisabledAPIKey
	}
	return info, nil
}

// Replace swaps the accepted keys.
func (v *APIKeyValidator) Replace(keys []config.APIKeyConfig) {
	m := make(map[string]config.APIKeyConfig, len(keys))
	for _, k := range keys {
		m[k.Key] = k
	}

	v.mu.Lock()
	v.keys = m
	v.mu.Unlock()
}

// AuthMiddleware rejects requests without a valid API key with 401. Paths
// listed in cfg.PublicPaths are served without a key.
func AuthMiddleware(cfg *config.AuthConfig, validator *APIKeyValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	public := make(map[string]bool, len(cfg.PublicPaths))
	for _, p := range cfg.PublicPaths {
		public[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key, err := extractAPIKey(r, cfg.Header)
			if err == nil {
				var info config.APIKeyConfig
				if info, err = validator.Validate(key); err == nil {
					logger.Debug("API key authenticated",
						"key_name", info.Name,
						"path", r.URL.Path,
						"request_id", GetRequestID(r.Context()),
					)
					ctx := context.WithValue(r.Context(), apiKeyNameKey, info.Name)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			logger.Warn("unauthenticated request",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
				"request_id", GetRequestID(r.Context()),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="saturn"`)
			http.Error(w, "Missing or invalid API key", http.StatusUnauthorized)
		})
	}
}

// extractAPIKey reads the key from header. The Authorization header must use
// the Bearer scheme.
func extractAPIKey(r *http.Request, header string) (string, error) {
	value := r.Header.Get(header)
	if value == "" {
		return "", ErrMissingAPIKey
	}
	if strings.EqualFold(header, "Authorization") {
		token, ok := strings.CutPrefix(value, "Bearer ")
		if !ok || token == "" {
			return "", ErrMissingAPIKey
		}
		return token, nil
	}
	return value, nil
}

// #nosec G101 - context key, not a credential
const apiKeyNameKey contextKey = "api_key_name"

// GetAPIKeyName returns the name of the API key that authenticated the request.
func GetAPIKeyName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(apiKeyNameKey).(string)
	return name, ok
}
