package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pixelforge/internal/http/handlers"
	"pixelforge/internal/infra"
	"pixelforge/internal/middleware"
	"pixelforge/internal/telemetry"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger, countries middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Identity,
		middleware.Logger(logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.I18N("en", countries),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/readyz", app.Ready)
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.CreateJob)
		r.Get("/", app.ListJobs)
		r.Get("/{job_id}", app.JobStatus)
	})

	r.Route("/v1/notifications", func(r chi.Router) {
		r.Get("/", app.ListNotifications)
		r.Post("/{id}/read", app.MarkNotificationRead)
	})

	return r
}
