// Package server provides the HTTP server for health checks and metrics, and
// middleware that reports handler panics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/powa-team/errnotify/internal/config"
	"github.com/powa-team/errnotify/internal/model"
	"github.com/powa-team/errnotify/internal/notifier"
)

// CanaryStatus reports the latest canary outcome; nil when none ran yet.
type CanaryStatus func() *model.Response

// Server provides HTTP endpoints for health checks and monitoring.
type Server struct {
	cfg      *config.ServerConfig
	notifier *config.NotifierConfig
	reporter notifier.Reporter
	canary   CanaryStatus
	logger   *zap.Logger

	server  *http.Server
	mu      sync.Mutex
	started time.Time
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string        `json:"status"`
	Uptime    string        `json:"uptime,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Reason    string        `json:"reason,omitempty"`
	Canary    *CanaryHealth `json:"canary,omitempty"`
}

// CanaryHealth summarizes the latest canary exchange.
type CanaryHealth struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	NoticeID   string `json:"notice_id,omitempty"`
}

// New creates a new Server. reporter receives handler panics; canary may be nil.
func New(cfg *config.ServerConfig, nc *config.NotifierConfig, reporter notifier.Reporter, canary CanaryStatus, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		notifier: nc,
		reporter: reporter,
		canary:   canary,
		logger:   logger.Named("server"),
		started:  time.Now(),
	}
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Recoverer(s.reporter, s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/livez", s.handleLive)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.started = time.Now()

	go func() {
		s.logger.Info("Health server listening", zap.Int("port", s.cfg.Port))
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Health server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

// handleHealth handles /healthz endpoint (combined check).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}

	if s.canary != nil {
		if last := s.canary(); last != nil {
			response.Canary = &CanaryHealth{
				Status:     last.Status.String(),
				StatusCode: last.StatusCode,
				NoticeID:   last.ID,
			}
			if last.Status == model.StatusRequestError {
				response.Status = "degraded"
			}
		}
	}

	statusCode := http.StatusOK
	if response.Status != "ok" {
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSON(w, statusCode, response)
}

// handleReady handles /readyz endpoint (readiness probe).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.notifier != nil {
		if err := s.notifier.CheckCredentials(); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:    "not ready",
				Timestamp: time.Now(),
				Reason:    err.Error(),
			})
			return
		}
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ready",
		Timestamp: time.Now(),
	})
}

// handleLive handles /livez endpoint (liveness probe).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Error encoding response", zap.Error(err))
	}
}
