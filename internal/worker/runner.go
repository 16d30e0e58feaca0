// Package worker claims queued jobs from the database and drives each one
// against the forge backend until it reaches a terminal state, copying the
// result back into the job row and the user's notification inbox.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pixelforge/internal/domain"
	"pixelforge/internal/infra"
	"pixelforge/internal/jobclient"
	"pixelforge/internal/notify"
	"pixelforge/internal/storage"
	"pixelforge/internal/telemetry"
)

const claimInterval = 2 * time.Second

type Runner struct {
	jobs          domain.JobRepository
	notifications domain.NotificationRepository
	backend       jobclient.Backend
	store         *storage.FileStore
	logger        infra.Logger

	pollInterval   time.Duration
	requestTimeout time.Duration
}

type Options struct {
	Jobs           domain.JobRepository
	Notifications  domain.NotificationRepository
	Backend        jobclient.Backend
	Store          *storage.FileStore
	Logger         infra.Logger
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

func NewRunner(opts Options) *Runner {
	return &Runner{
		jobs:           opts.Jobs,
		notifications:  opts.Notifications,
		backend:        opts.Backend,
		store:          opts.Store,
		logger:         opts.Logger,
		pollInterval:   opts.PollInterval,
		requestTimeout: opts.RequestTimeout,
	}
}

// Run claims and processes jobs until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := r.jobs.ClaimNextQueued(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNoJobAvailable) {
				sleep(ctx, claimInterval)
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error().Err(err).Msg("worker: failed to claim job")
			sleep(ctx, claimInterval)
			continue
		}

		r.handleJob(ctx, job)
	}
}

func (r *Runner) handleJob(ctx context.Context, job *domain.Job) {
	r.logger.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("worker: picked job")
	telemetry.InFlightGauge.Inc()
	defer telemetry.InFlightGauge.Dec()

	if err := r.runJob(ctx, job); err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: job failed")
	}
}

func (r *Runner) runJob(ctx context.Context, job *domain.Job) error {
	req, locale, err := decodePrompt(job.PromptJSON)
	if err != nil {
		return r.finalize(ctx, job.ID, domain.JobStatusFailed, err.Error(), nil, jobclient.Record{})
	}

	var notifier jobclient.Notifier = notify.NewLog(r.logger)
	if r.notifications != nil {
		notifier = notify.NewInbox(r.notifications, job.UserID, locale, r.logger)
	}
	controller := jobclient.New(r.backend, notifier, jobclient.Options{
		PollInterval:   r.pollInterval,
		RequestTimeout: r.requestTimeout,
	})

	if err := controller.Submit(ctx, req); err != nil {
		rec := controller.State()
		return r.finalize(ctx, job.ID, domain.JobStatusFailed, rec.ErrorMessage, nil, rec)
	}

	if remoteID := controller.State().JobID; remoteID != "" {
		if err := r.jobs.SetRemoteJob(ctx, job.ID, remoteID); err != nil {
			r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: record remote job id failed")
		}
	}

	rec, err := controller.Wait(ctx)
	if err != nil {
		// Shutdown mid-job: stop polling and mark the row cancelled so a
		// restart does not double-submit.
		controller.Cancel()
		rec = controller.State()
	}

	switch rec.Status {
	case jobclient.StatusCompleted:
		resultJSON := r.persistOutput(ctx, job.ID, rec.Output)
		return r.finalize(ctx, job.ID, domain.JobStatusCompleted, "", resultJSON, rec)
	case jobclient.StatusCancelled:
		return r.finalize(ctx, job.ID, domain.JobStatusCancelled, "", nil, rec)
	default:
		msg := rec.ErrorMessage
		if msg == "" {
			msg = "job did not complete"
		}
		return r.finalize(ctx, job.ID, domain.JobStatusFailed, msg, nil, rec)
	}
}

func (r *Runner) finalize(ctx context.Context, jobID string, status domain.JobStatus, errMsg string, resultJSON []byte, rec jobclient.Record) error {
	// The job context is cancelled during shutdown; the terminal status must
	// still land or the claimed row stays running and is never reclaimed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var msgPtr *string
	if errMsg != "" {
		msgPtr = &errMsg
	}
	switch status {
	case domain.JobStatusCompleted:
		telemetry.JobsCompleted.Inc()
	case domain.JobStatusCancelled:
		telemetry.JobsCancelled.Inc()
	default:
		telemetry.JobsFailed.Inc()
	}
	if err := r.jobs.Finalize(ctx, jobID, status, msgPtr, resultJSON, rec.QueueDelayMs, rec.ExecutionMs); err != nil {
		return fmt.Errorf("worker: finalize job %s: %w", jobID, err)
	}
	return nil
}

// persistOutput writes inline artifacts to the file store and returns the
// result document for the job row. URL artifacts are referenced as-is.
func (r *Runner) persistOutput(ctx context.Context, jobID string, out *jobclient.Output) []byte {
	doc := struct {
		Artifacts []map[string]string `json:"artifacts"`
		Warnings  []string            `json:"warnings,omitempty"`
	}{Artifacts: []map[string]string{}}
	if out != nil {
		doc.Warnings = out.Warnings
		for i, artifact := range out.Artifacts {
			entry := map[string]string{}
			if artifact.Filename != "" {
				entry["filename"] = artifact.Filename
			}
			if artifact.URL != "" {
				entry["url"] = artifact.URL
			}
			if len(artifact.Data) > 0 && r.store != nil {
				key := storageKey(jobID, artifact.Filename, i)
				saved, err := r.store.Write(ctx, key, artifact.Data)
				if err != nil {
					r.logger.Warn().Err(err).Str("job_id", jobID).Msg("worker: persist artifact failed")
				} else {
					entry["storage_key"] = saved
				}
			}
			if len(entry) > 0 {
				doc.Artifacts = append(doc.Artifacts, entry)
			}
		}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	return b
}

func storageKey(jobID, filename string, index int) string {
	if filename == "" {
		filename = fmt.Sprintf("artifact-%02d.bin", index+1)
	}
	return fmt.Sprintf("generated/%s/%s", jobID, filename)
}

func decodePrompt(promptJSON []byte) (jobclient.Request, string, error) {
	var payload struct {
		Prompt string         `json:"prompt"`
		Params map[string]any `json:"params"`
		Locale string         `json:"locale"`
	}
	if err := json.Unmarshal(promptJSON, &payload); err != nil {
		return jobclient.Request{}, "", fmt.Errorf("worker: decode prompt: %w", err)
	}
	if payload.Prompt == "" {
		return jobclient.Request{}, "", errors.New("worker: empty prompt")
	}
	return jobclient.Request{Prompt: payload.Prompt, Params: payload.Params}, payload.Locale, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
