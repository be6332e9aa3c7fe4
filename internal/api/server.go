// Package api provides the read-only HTTP API for churrera jobs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/diagnostics"
	"github.com/churrera-dev/churrera/internal/events"
)

// JobReader is the part of the job repository the API uses.
type JobReader interface {
	FindAll(ctx context.Context) ([]core.Job, error)
	FindJobWithDetails(ctx context.Context, id string) (core.JobDetails, error)
	FindChildren(ctx context.Context, parentID string) ([]core.Job, error)
}

// ResourceReporter supplies process resource samples for /health.
type ResourceReporter interface {
	Latest() (diagnostics.Snapshot, bool)
	Trend() diagnostics.Trend
}

// Server provides HTTP endpoints for job inspection.
type Server struct {
	router    chi.Router
	jobs      JobReader
	eventBus  *events.EventBus
	gatherer  prometheus.Gatherer
	resources ResourceReporter
	logger    *slog.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithEventBus enables the event stream endpoint.
func WithEventBus(bus *events.EventBus) ServerOption {
	return func(s *Server) {
		s.eventBus = bus
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithResources adds resource samples to the health response.
func WithResources(r ResourceReporter) ServerOption {
	return func(s *Server) {
		s.resources = r
	}
}

// NewServer creates a new API server.
func NewServer(jobs JobReader, opts ...ServerOption) *Server {
	s := &Server{
		jobs:     jobs,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// The event stream is long-lived; only the job reads get a timeout.
		r.With(middleware.Timeout(30*time.Second)).Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Get("/{jobID}", s.handleGetJob)
		})
		r.Get("/events", s.handleSSE)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                `json:"status"`
	Time      string                `json:"time"`
	Resources *diagnostics.Snapshot `json:"resources,omitempty"`
	Trend     *diagnostics.Trend    `json:"trend,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	if s.resources != nil {
		if snap, ok := s.resources.Latest(); ok {
			resp.Resources = &snap
		}
		trend := s.resources.Trend()
		if !trend.Healthy {
			resp.Status = "degraded"
		}
		resp.Trend = &trend
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
