// Package http exposes the scoring service over HTTP.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molscore/internal/interfaces/http/handlers"
	"github.com/turtacn/molscore/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	ScoringHandler *handlers.ScoringHandler
	RunsHandler    *handlers.RunsHandler
	HealthHandler  *handlers.HealthHandler

	// Auth guards the /api/v1 routes when set.
	Auth func(http.Handler) http.Handler

	Logger           logging.Logger
	Metrics          *prometheus.ScoringMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
}

// NewRouter constructs the HTTP route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}

	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsCollector.Handler())
	}

	if cfg.ScoringHandler != nil || cfg.RunsHandler != nil {
		r.Route("/api/v1", func(api chi.Router) {
			if cfg.Auth != nil {
				api.Use(cfg.Auth)
			}
			registerScoringRoutes(api, cfg.ScoringHandler)
			registerRunRoutes(api, cfg.RunsHandler)
		})
	}

	return r
}

// registerScoringRoutes mounts the scorer endpoints under /scorers.
func registerScoringRoutes(r chi.Router, h *handlers.ScoringHandler) {
	if h == nil {
		return
	}
	r.Route("/scorers", func(sr chi.Router) {
		sr.Get("/", h.ListScorers)
		sr.Post("/{name}/score", h.Score)
	})
}

func registerRunRoutes(r chi.Router, h *handlers.RunsHandler) {
	if h == nil {
		return
	}
	r.Route("/runs", func(rr chi.Router) {
		rr.Get("/", h.ListRuns)
		rr.Get("/{id}", h.GetRun)
	})
}
