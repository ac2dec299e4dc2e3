// Package http assembles the admission API server: chi router, shared
// middleware, and the net/http server lifecycle.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rezkam/jobq/internal/infrastructure/http/handler"
	mw "github.com/rezkam/jobq/internal/infrastructure/http/middleware"
)

// Default configuration values for the HTTP server.
const (
	DefaultHost              = "" // all interfaces
	DefaultPort              = "3001"
	DefaultReadTimeout       = 15 * time.Second
	DefaultWriteTimeout      = 15 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1MB
	DefaultMaxBodyBytes      = 1 << 20 // 1MB
)

// ServerConfig holds configuration for the HTTP server and router.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
}

func (cfg *ServerConfig) applyDefaults() {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.MaxHeaderBytes <= 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// APIServer wraps the HTTP server with router and middleware.
type APIServer struct {
	server *http.Server
}

// NewAPIServer creates the admission API server. The router is wrapped with
// otelhttp so every request carries a span when OTel is enabled.
func NewAPIServer(jobs *handler.JobsHandler, cfg ServerConfig) *APIServer {
	cfg.applyDefaults()

	router := setupRouter(jobs, cfg)

	return &APIServer{
		server: &http.Server{
			Addr:              cfg.Host + ":" + cfg.Port,
			Handler:           otelhttp.NewHandler(router, "jobq-api"),
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
	}
}

func setupRouter(jobs *handler.JobsHandler, cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(mw.MaxBodyBytes(cfg.MaxBodyBytes))

	jobs.Register(r)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *APIServer) Start() error {
	slog.Info("starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server. The provided context
// bounds how long outstanding requests may drain.
func (s *APIServer) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler returns the underlying handler for tests.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}
