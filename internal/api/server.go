package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/filedepot/internal/logger"
)

// readHeaderTimeout bounds how long a client may dawdle over its request
// line and headers. Bodies get the much longer ReadTimeout.
const readHeaderTimeout = 10 * time.Second

// Server runs the REST API as a lifecycle component.
type Server struct {
	server       *http.Server
	router       http.Handler
	listenAddr   string
	shutdownOnce sync.Once
}

// New builds the API server. The required Deps members must be set;
// missing optional ones are replaced with no-ops.
func New(cfg Config, deps Deps) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	router := newRouter(cfg, deps)

	return &Server{
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		router:     router,
		listenAddr: cfg.ListenAddr,
	}, nil
}

// Handler returns the assembled router, used by tests to drive the API
// through httptest without a listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Name identifies the component to the lifecycle runner.
func (s *Server) Name() string {
	return "api"
}

// Serve listens until the context is cancelled, Stop is called, or the
// listener fails.
func (s *Server) Serve(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening on %s", s.listenAddr)
		errChan <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// A fresh context: the cancelled one would abort the drain
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		// ErrServerClosed means Stop was called; that is a clean exit.
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	}
}

// Stop drains in-flight requests and closes the listener. Safe to call
// multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("api server shutdown error: %w", err)
			logger.Error("API server shutdown error: %v", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}
