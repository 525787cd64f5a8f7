package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/pratik-mahalle/snapdrift/docs"
	"github.com/pratik-mahalle/snapdrift/internal/api/handlers"
	"github.com/pratik-mahalle/snapdrift/internal/api/middleware"
	"github.com/pratik-mahalle/snapdrift/internal/config"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/metrics"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/utils"
)

type Handlers struct {
	Health   *handlers.HealthHandler
	Scan     *handlers.ScanHandler
	Analysis *handlers.AnalysisHandler
}

func New(cfg config.ServerConfig, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Probes, metrics and API docs are not rate limited
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/health", h.Health.Healthz)
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

		// Scans
		r.Route("/scans", func(r chi.Router) {
			r.Get("/", h.Scan.List)
			r.Get("/{id}", h.Scan.Get)
			r.Get("/{id}/changes", h.Scan.Changes)
		})

		// Analysis
		r.Get("/compare", h.Analysis.Compare)
		r.Get("/drift", h.Analysis.Drift)
		r.Get("/timeline", h.Analysis.Timeline)
		r.Get("/evolution", h.Analysis.Evolution)
		r.Get("/changes/summary", h.Analysis.ChangeSummary)
		r.Get("/summary", h.Analysis.HistoricalSummary)
		r.Get("/health", h.Analysis.Health)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, errors.NotFound("route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorMessage(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return r
}
