// Package web provides the HTTP status server: health, run history, run
// triggers and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/cademycode/internal/config"
	"github.com/JonMunkholm/cademycode/internal/pipeline"
	"github.com/JonMunkholm/cademycode/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RunService starts runs and reports on them. *pipeline.Runner satisfies it.
type RunService interface {
	Start(ctx context.Context) (*pipeline.Summary, error)
	Busy() bool
	Last() (*pipeline.Summary, bool)
}

// RunLister lists persisted runs, newest first.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]*pipeline.Summary, error)
}

// Server is the HTTP server for the pipeline.
type Server struct {
	runner  RunService
	history RunLister
	metrics http.Handler
	cfg     config.ServerConfig
	router  *chi.Mux
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithHistory serves GET /api/runs from persisted history.
func WithHistory(l RunLister) Option {
	return func(s *Server) { s.history = l }
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a new Server instance.
func NewServer(runner RunService, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		runner: runner,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleListRuns)
		r.Post("/runs", s.handleStartRun)
		r.Get("/runs/last", s.handleLastRun)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errNotFound, http.StatusNotFound)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	slog.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
