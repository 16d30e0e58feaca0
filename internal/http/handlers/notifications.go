package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"pixelforge/internal/domain"
)

func (a *App) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	items, err := a.Notifications.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list notifications")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list notifications")
		return
	}
	views := make([]map[string]any, 0, len(items))
	for _, n := range items {
		views = append(views, map[string]any{
			"id":         n.ID,
			"kind":       n.Kind,
			"title":      n.Title,
			"body":       n.Body,
			"read":       n.Read,
			"created_at": n.CreatedAt.Format(time.RFC3339),
			"updated_at": n.UpdatedAt.Format(time.RFC3339),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": views})
}

func (a *App) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	if err := a.Notifications.MarkRead(r.Context(), id, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "notification not found")
			return
		}
		a.Logger.Error().Err(err).Str("notification_id", id).Msg("mark notification read")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update notification")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
