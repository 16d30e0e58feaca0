package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pixelforge/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, user_id, kind, status, prompt_json, result_json, remote_job_id, queue_delay_ms, execution_ms, error_message, created_at, updated_at`

// Create inserts a new queued job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, user_id, kind, status, prompt_json)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.Kind,
		job.Status,
		job.PromptJSON,
	)
	return err
}

// GetByID fetches a job owned by the given user.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE id = $1 AND user_id = $2;
`
	return scanJob(r.pool.QueryRow(ctx, query, jobID, userID))
}

// ListRecent returns the user's most recent jobs, newest first.
func (r *JobRepositoryPG) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ClaimNextQueued atomically leases the oldest queued job to the caller.
func (r *JobRepositoryPG) ClaimNextQueued(ctx context.Context) (*domain.Job, error) {
	query := `
UPDATE jobs
SET status = 'running', updated_at = NOW()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'queued'
    ORDER BY created_at
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + jobColumns + `;
`
	job, err := scanJob(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoJobAvailable
		}
		return nil, err
	}
	return job, nil
}

// SetRemoteJob records the backend job ID once submission is acknowledged.
func (r *JobRepositoryPG) SetRemoteJob(ctx context.Context, jobID, remoteJobID string) error {
	query := `
UPDATE jobs
SET remote_job_id = $2, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, remoteJobID)
	return err
}

// Finalize copies the terminal result of a job run back into the row.
func (r *JobRepositoryPG) Finalize(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, resultJSON []byte, queueDelayMs, executionMs *int64) error {
	query := `
UPDATE jobs
SET status = $2,
    updated_at = NOW(),
    error_message = COALESCE($3, error_message),
    result_json = COALESCE($4, result_json),
    queue_delay_ms = COALESCE($5, queue_delay_ms),
    execution_ms = COALESCE($6, execution_ms)
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, status, errMsg, nullableBytes(resultJSON), queueDelayMs, executionMs)
	return err
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var remoteJobID, errorMessage *string
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Kind,
		&job.Status,
		&job.PromptJSON,
		&job.ResultJSON,
		&remoteJobID,
		&job.QueueDelayMs,
		&job.ExecutionMs,
		&errorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if remoteJobID != nil {
		job.RemoteJobID = *remoteJobID
	}
	if errorMessage != nil {
		job.ErrorMessage = *errorMessage
	}
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
