package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pixelforge/internal/domain"
	"pixelforge/internal/middleware"
	"pixelforge/internal/telemetry"
)

type createJobRequest struct {
	Kind   string          `json:"kind"`
	Prompt string          `json:"prompt"`
	Params json.RawMessage `json:"params"`
}

type jobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

var queuedMessages = map[string]string{
	"en": "your generation has been queued",
	"es": "tu generación ha sido encolada",
	"pt": "sua geração foi enfileirada",
}

func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		return
	}
	kind := domain.JobKind(req.Kind)
	if kind == "" {
		kind = domain.JobKindGenerate
	}
	if kind != domain.JobKindGenerate && kind != domain.JobKindTransform {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported kind")
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	promptJSON, err := json.Marshal(map[string]any{
		"prompt": req.Prompt,
		"params": req.Params,
		"locale": locale,
	})
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid params")
		return
	}
	job := &domain.Job{
		ID:         uuid.NewString(),
		UserID:     userID,
		Kind:       kind,
		Status:     domain.JobStatusQueued,
		PromptJSON: promptJSON,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("create job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}
	telemetry.JobsEnqueued.Inc()
	a.Logger.Debug().
		Str("job_id", job.ID).
		Str("locale", locale).
		Str("country", middleware.CountryFromContext(r.Context())).
		Msg("job queued")
	msg, ok := queuedMessages[locale]
	if !ok {
		msg = queuedMessages["en"]
	}
	a.json(w, http.StatusAccepted, jobResponse{JobID: job.ID, Status: string(job.Status), Message: msg})
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Jobs.GetByID(r.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("load job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, jobView(job))
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	jobs, err := a.Jobs.ListRecent(r.Context(), userID, limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list jobs")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	items := make([]map[string]any, 0, len(jobs))
	for i := range jobs {
		items = append(items, jobView(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func jobView(job *domain.Job) map[string]any {
	view := map[string]any{
		"id":         job.ID,
		"user_id":    job.UserID,
		"kind":       job.Kind,
		"status":     job.Status,
		"created_at": job.CreatedAt.Format(time.RFC3339),
		"updated_at": job.UpdatedAt.Format(time.RFC3339),
	}
	if job.RemoteJobID != "" {
		view["remote_job_id"] = job.RemoteJobID
	}
	if job.QueueDelayMs != nil {
		view["queue_delay_ms"] = *job.QueueDelayMs
	}
	if job.ExecutionMs != nil {
		view["execution_ms"] = *job.ExecutionMs
	}
	if job.ErrorMessage != "" {
		view["error"] = job.ErrorMessage
	}
	if len(job.ResultJSON) > 0 {
		view["result"] = json.RawMessage(job.ResultJSON)
	}
	return view
}
