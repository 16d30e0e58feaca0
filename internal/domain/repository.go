package domain

import "context"

// JobRepository defines persistence for job submissions.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID, userID string) (*Job, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]Job, error)
	// ClaimNextQueued atomically moves the oldest queued job to running and
	// returns it. ErrNoJobAvailable is returned when the queue is empty.
	ClaimNextQueued(ctx context.Context) (*Job, error)
	SetRemoteJob(ctx context.Context, jobID, remoteJobID string) error
	Finalize(ctx context.Context, jobID string, status JobStatus, errMsg *string, resultJSON []byte, queueDelayMs, executionMs *int64) error
}

// NotificationRepository defines persistence for the user inbox.
type NotificationRepository interface {
	Insert(ctx context.Context, n *Notification) error
	Update(ctx context.Context, id string, kind NotificationKind, title, body string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}
