package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/chattxt/internal/metrics"
	"github.com/MikeSquared-Agency/chattxt/internal/processor"
)

const defaultMaxUpload = 64 << 20

type Options struct {
	Port           int
	APIToken       string
	MaxUploadBytes int64
	Gatherer       prometheus.Gatherer // nil disables /metrics
}

type Server struct {
	router    *chi.Mux
	port      int
	proc      *processor.Processor
	history   History
	maxUpload int64
	logger    *slog.Logger

	httpServer *http.Server
}

// NewServer wires the HTTP routes. history may be nil, in which case the
// conversion history routes are not mounted.
func NewServer(opts Options, proc *processor.Processor, history History, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		port:      opts.Port,
		proc:      proc,
		history:   history,
		maxUpload: opts.MaxUploadBytes,
		logger:    logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/chattxt/status", s.status)
	if opts.Gatherer != nil {
		router.Handle("/metrics", metrics.Handler(opts.Gatherer))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(opts.APIToken))
		r.Post("/convert", s.convert)
		if history != nil {
			r.Get("/conversions", s.listConversions)
			r.Get("/conversions/{id}", s.getConversion)
		}
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"service": "chattxt",
		"status":  "ok",
		"history": s.history != nil,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
