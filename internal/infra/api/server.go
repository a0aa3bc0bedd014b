package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"elearning-billing/internal/config"
	"elearning-billing/internal/infra/api/apiv1"
	"elearning-billing/internal/infra/metrics"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server owns the HTTP listener and the router.
type Server struct {
	cfg    config.ServerConfig
	router chi.Router
	server *http.Server
	log    *zerolog.Logger
}

// NewServer builds the router: middleware chain, liveness, metrics and the v1 API.
func NewServer(cfg config.ServerConfig, v1 *apiv1.Server, checks map[string]HealthCheck, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http").Logger()

	r := chi.NewRouter()
	r.Use(TraceID(&l), RequestLog(&l), Recover(&l), Timeout(cfg.RequestTimeout))
	r.Get("/health", healthHandler(checks))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	apiv1.RegisterAPIV1(r, v1)

	return &Server{cfg: cfg, router: r, log: &l}
}

func (s *Server) Handler() http.Handler { return s.router }

// Start blocks until the listener stops. A graceful Shutdown returns nil.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		out := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				out[name] = err.Error()
				continue
			}
			out[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": http.StatusText(status), "checks": out})
	}
}
