// Package server serves the engine's HTTP endpoints: Prometheus metrics,
// health, readiness and version.
//
// Requests pass through request ID, logging, optional API key
// authentication and panic recovery middleware. With TLS enabled the
// certificate pair is reloaded from disk when it changes.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/saturn/pkg/config"
)

// Server is the HTTP server of the engine's telemetry endpoints.
type Server struct {
	config       *config.ServerConfig
	addr         string
	handler      http.Handler
	logger       *slog.Logger
	httpServer   *http.Server
	keys         *APIKeyValidator
	certs        *CertificateReloader
	ready        chan struct{}
	shutdownOnce sync.Once

	mu        sync.RWMutex
	isRunning bool
	listener  net.Listener
}

// New creates a server listening on addr and serving handler wrapped in the
// request ID, logging and recovery middleware, and API key authentication
// when cfg.Auth is enabled.
func New(addr string, cfg *config.ServerConfig, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:  cfg,
		addr:    addr,
		handler: handler,
		logger:  logger.With("component", "server"),
		keys:    NewAPIKeyValidator(cfg.Auth.Keys),
		ready:   make(chan struct{}),
	}
}

// Start listens and serves until ctx is done or serving fails, then shuts
// the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	var tlsConfig *tls.Config
	if s.config.TLS.Enabled {
		var err error
		if tlsConfig, err = s.configureTLS(ctx); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		TLSConfig:         tlsConfig,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}
	s.listener = ln
	s.isRunning = true
	s.mu.Unlock()
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"address", ln.Addr().String(),
			"tls_enabled", s.config.TLS.Enabled,
		)

		var err error
		if s.config.TLS.Enabled {
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.markStopped()
		return err
	}
}

// Ready is closed once the server listens.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the address the server listens on, or the configured
// address before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully shuts down the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.markStopped()
		s.logger.Info("server stopped")
	})

	return shutdownErr
}

func (s *Server) markStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the served handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	handler := RecoveryMiddleware(s.logger)(s.handler)
	if s.config.Auth.Enabled {
		handler = AuthMiddleware(&s.config.Auth, s.keys, s.logger)(handler)
	}
	handler = LoggingMiddleware(s.logger)(handler)
	return RequestIDMiddleware(handler)
}

// configureTLS loads the certificate pair and returns the TLS settings. The
// pair is reloaded from disk until ctx is done.
func (s *Server) configureTLS(ctx context.Context) (*tls.Config, error) {
	if s.config.TLS.CertFile == "" {
		return nil, fmt.Errorf("TLS cert file not specified")
	}
	if s.config.TLS.KeyFile == "" {
		return nil, fmt.Errorf("TLS key file not specified")
	}

	s.certs = NewCertificateReloader(s.config.TLS.CertFile, s.config.TLS.KeyFile, s.config.TLS.ReloadInterval, s.logger)
	if err := s.certs.Start(ctx); err != nil {
		return nil, err
	}

	return &tls.Config{
		MinVersion:     tls.VersionTLS13,
		GetCertificate: s.certs.GetCertificate,
	}, nil
}
