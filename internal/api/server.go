// Package api exposes the scraping pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/jmylchreest/sitescrape/internal/logger"
	"github.com/jmylchreest/sitescrape/internal/metrics"
	"github.com/jmylchreest/sitescrape/pkg/sitescrape"
)

// Scraper runs one scrape. *sitescrape.Pipeline satisfies it.
type Scraper interface {
	Run(ctx context.Context, req sitescrape.Request) (*sitescrape.Result, error)
}

// Server represents the API server.
type Server struct {
	Addr    string
	router  *chi.Mux
	server  *http.Server
	scraper Scraper
	log     *slog.Logger

	registry *prom.Registry
	recorder metrics.Recorder
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetrics records metrics into reg and serves them on /metrics.
func WithMetrics(reg *prom.Registry) ServerOption {
	return func(s *Server) {
		s.registry = reg
		s.recorder = metrics.NewPrometheusRecorder(reg)
	}
}

// NewServer creates a new API server.
func NewServer(addr string, scraper Scraper, opts ...ServerOption) *Server {
	s := &Server{
		Addr:     addr,
		router:   chi.NewRouter(),
		scraper:  scraper,
		log:      logger.Component("api"),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	// No write timeout: a scrape legitimately takes minutes.
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	s.router.Get("/", s.handleRoot)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/scrape", s.handleScrape)

	if s.registry != nil {
		s.router.Method(http.MethodGet, "/metrics", metrics.HTTPHandler(s.registry))
	}
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.recorder.ObserveRequest(r.Method, route, ww.Status(), time.Since(start))
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Website scraper API is running."})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
