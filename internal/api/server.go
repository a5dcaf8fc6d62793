// Package api exposes the operational HTTP interface for the fetch engine:
// health probes, Prometheus metrics, and queue statistics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stashy/stashy/internal/engine"
	"github.com/stashy/stashy/internal/metrics"
)

// StatsSource reports queue item counts; the Postgres store satisfies it.
type StatsSource interface {
	Stats(ctx context.Context) (engine.QueueStats, error)
}

// Server wires HTTP handlers to the queue store.
type Server struct {
	router chi.Router
	stats  StatsSource
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(stats StatsSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		stats:  stats,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/queue", s.queueStats)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no store"})
		return
	}
	if _, err := s.stats.Stats(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) queueStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no store configured"})
		return
	}
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		s.logger.Error("queue stats failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "queue stats unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"pending": stats.Pending,
		"claimed": stats.Claimed,
		"done":    stats.Done,
		"failed":  stats.Failed,
		"total":   stats.Total(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
