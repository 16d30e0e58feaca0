package handlers

import (
	"encoding/json"
	"net/http"

	"pixelforge/internal/domain"
	"pixelforge/internal/infra"
	"pixelforge/internal/middleware"
)

type App struct {
	Jobs          domain.JobRepository
	Notifications domain.NotificationRepository
	DB            Pinger
	Logger        infra.Logger
	Config        *infra.Config
}

func NewApp(jobs domain.JobRepository, notifications domain.NotificationRepository, logger infra.Logger, cfg *infra.Config) *App {
	return &App{Jobs: jobs, Notifications: notifications, Logger: logger, Config: cfg}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
