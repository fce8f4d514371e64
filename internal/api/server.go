package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"marketscanner/internal/api/health"
	"marketscanner/internal/metrics"
	"marketscanner/pkg/errors"
	"marketscanner/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port         int
	ServiceName  string
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const (
	defaultWriteTimeout = 60 * time.Second
	// responseMargin is left after the slowest agent call for aggregation and encoding
	responseMargin = time.Second
)

func (cfg ServerConfig) writeTimeout() time.Duration {
	if cfg.WriteTimeout <= 0 {
		return defaultWriteTimeout
	}
	return cfg.WriteTimeout
}

// CheckRunTimeout fails when a run waiting slowest on its agents could
// outlive the write timeout, which would cut off /run-workflow responses.
func (cfg ServerConfig) CheckRunTimeout(slowest time.Duration) error {
	if wt := cfg.writeTimeout(); slowest+responseMargin > wt {
		return errors.NewValidationError("HTTP_WRITE_TIMEOUT",
			fmt.Sprintf("must exceed the slowest agent timeout %s by at least %s", slowest, responseMargin), wt.String())
	}
	return nil
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures HTTP server with all routes.
// api and stream are optional.
func NewServer(cfg ServerConfig, healthHandler *health.Handler, api *Handler, stream http.Handler, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	// Health check endpoints (Kubernetes probes)
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", healthHandler.HandleReadiness)
	mux.HandleFunc("GET /live", healthHandler.HandleLiveness)

	// Prometheus metrics endpoint
	mux.Handle("GET /metrics", metrics.Handler())

	if api != nil {
		api.Register(mux)
	}

	if stream != nil {
		mux.Handle("GET /ws", stream)
		log.Info("Result stream registered at /ws")
	}

	// Root endpoint (service info)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	})

	port := 8080
	if cfg.Port > 0 {
		port = cfg.Port
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}

	log.Infof("HTTP server configured on port %d", port)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: cfg.writeTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Handler exposes the routed mux
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("HTTP server stopped")
	return nil
}
