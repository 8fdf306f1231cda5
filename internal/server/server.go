// Package server exposes the prospecting pipeline over HTTP: asynchronous
// job submission, job status lookup, and synchronous cached analysis.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/prospector/internal/analysis"
	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/internal/worker"
)

// Server holds the dependencies for the HTTP API.
type Server struct {
	cfg        config.ServerConfig
	store      store.Store
	workers    *worker.Pool
	analyzer   *analysis.Service
	gatherer   prometheus.Gatherer
	validate   *validator.Validate
	router     http.Handler
	httpServer *http.Server
}

// New wires the HTTP server. gatherer may be nil, in which case /metrics
// serves the default registry.
func New(cfg config.ServerConfig, st store.Store, workers *worker.Pool, analyzer *analysis.Service, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:      cfg,
		store:    st,
		workers:  workers,
		analyzer: analyzer,
		gatherer: gatherer,
		validate: validator.New(),
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Post("/prospect", s.handleProspect)
	r.Post("/analyze", s.handleAnalyze)

	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Get("/job-status", s.handleJobStatus)
	})

	return r
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
