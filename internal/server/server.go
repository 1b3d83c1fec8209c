// Package server exposes the simulator over HTTP: submit a workload, get the
// run back, browse the run ledger and scrape metrics.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/me/coresim/internal/config"
	"github.com/me/coresim/internal/metrics"
	"github.com/me/coresim/internal/store"
	"github.com/me/coresim/internal/ui"
)

// Server is the coresim REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	sim       config.SimConfig
	startTime time.Time
	store     store.Store
	metrics   *metrics.Collector
	runs      *semaphore.Weighted
	ui        bool
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithMetrics feeds every run into c and serves it at /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithSimConfig sets the base simulation config API runs start from.
func WithSimConfig(cfg config.SimConfig) Option {
	return func(s *Server) {
		s.sim = cfg
	}
}

// WithUI serves the HTML run browser under /ui.
func WithUI() Option {
	return func(s *Server) {
		s.ui = true
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, logger *slog.Logger, opts ...Option) *Server {
	maxRuns := cfg.MaxRuns
	if maxRuns <= 0 {
		maxRuns = 1
	}
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		sim:       config.DefaultSimConfig(),
		startTime: time.Now(),
		store:     st,
		runs:      semaphore.NewWeighted(int64(maxRuns)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	if s.ui {
		u := ui.New(s.store, s.logger, ui.Config{Base: "/ui"})
		r.Route("/ui", u.RegisterRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleCreateRun)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Delete("/", s.handleDeleteRun)
				r.Get("/ticks", s.handleListTicks)
			})
		})
	})
}
