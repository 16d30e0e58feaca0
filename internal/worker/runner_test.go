package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pixelforge/internal/domain"
	"pixelforge/internal/jobclient"
	"pixelforge/internal/storage"
)

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newMemJobRepo(jobs ...*domain.Job) *memJobRepo {
	m := &memJobRepo{jobs: map[string]*domain.Job{}}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return m
}

func (m *memJobRepo) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *memJobRepo) GetByID(_ context.Context, jobID, userID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (m *memJobRepo) ListRecent(_ context.Context, userID string, limit int) ([]domain.Job, error) {
	return nil, nil
}

func (m *memJobRepo) ClaimNextQueued(_ context.Context) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusQueued {
			job.Status = domain.JobStatusRunning
			return job, nil
		}
	}
	return nil, domain.ErrNoJobAvailable
}

func (m *memJobRepo) SetRemoteJob(_ context.Context, jobID, remoteJobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[jobID].RemoteJobID = remoteJobID
	return nil
}

func (m *memJobRepo) Finalize(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, resultJSON []byte, queueDelayMs, executionMs *int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[jobID]
	job.Status = status
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	job.ResultJSON = resultJSON
	job.QueueDelayMs = queueDelayMs
	job.ExecutionMs = executionMs
	return nil
}

type memNotificationRepo struct {
	mu   sync.Mutex
	rows []domain.Notification
}

func (m *memNotificationRepo) Insert(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *n)
	return nil
}

func (m *memNotificationRepo) Update(_ context.Context, id string, kind domain.NotificationKind, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Kind = kind
			m.rows[i].Title = title
			m.rows[i].Body = body
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memNotificationRepo) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.Notification(nil), m.rows...)
	return out, nil
}

func (m *memNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	return nil
}

type fakeBackend struct {
	submit func(ctx context.Context, req jobclient.Request) (jobclient.SubmitAck, error)
	status func(ctx context.Context, jobID string) (jobclient.StatusUpdate, error)
}

func (b *fakeBackend) Submit(ctx context.Context, req jobclient.Request) (jobclient.SubmitAck, error) {
	return b.submit(ctx, req)
}

func (b *fakeBackend) GetStatus(ctx context.Context, jobID string) (jobclient.StatusUpdate, error) {
	return b.status(ctx, jobID)
}

func queuedJob(id, userID, prompt string) *domain.Job {
	promptJSON, _ := json.Marshal(map[string]any{"prompt": prompt})
	return &domain.Job{
		ID:         id,
		UserID:     userID,
		Kind:       domain.JobKindGenerate,
		Status:     domain.JobStatusQueued,
		PromptJSON: promptJSON,
	}
}

func newTestRunner(t *testing.T, jobs *memJobRepo, notifications *memNotificationRepo, backend jobclient.Backend) *Runner {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewRunner(Options{
		Jobs:          jobs,
		Notifications: notifications,
		Backend:       backend,
		Store:         store,
		Logger:        zerolog.Nop(),
		PollInterval:  5 * time.Millisecond,
	})
}

func TestRunJobCompletes(t *testing.T) {
	job := queuedJob("j1", "u1", "a red fox")
	jobs := newMemJobRepo(job)
	notifications := &memNotificationRepo{}

	execMs := int64(4200)
	backend := &fakeBackend{
		submit: func(_ context.Context, req jobclient.Request) (jobclient.SubmitAck, error) {
			require.Equal(t, "a red fox", req.Prompt)
			return jobclient.SubmitAck{JobID: "R1", Status: jobclient.StatusQueued}, nil
		},
		status: func(_ context.Context, jobID string) (jobclient.StatusUpdate, error) {
			return jobclient.StatusUpdate{
				JobID:       jobID,
				Status:      jobclient.StatusCompleted,
				ExecutionMs: &execMs,
				Output: &jobclient.Output{
					Artifacts: []jobclient.Artifact{{Filename: "a.png", Data: []byte("png-bytes")}},
				},
			}, nil
		},
	}
	runner := newTestRunner(t, jobs, notifications, backend)

	require.NoError(t, runner.runJob(context.Background(), job))

	stored := jobs.jobs["j1"]
	require.Equal(t, domain.JobStatusCompleted, stored.Status)
	require.Equal(t, "R1", stored.RemoteJobID)
	require.NotNil(t, stored.ExecutionMs)
	require.EqualValues(t, 4200, *stored.ExecutionMs)

	var result struct {
		Artifacts []map[string]string `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(stored.ResultJSON, &result))
	require.Len(t, result.Artifacts, 1)
	require.Equal(t, "a.png", result.Artifacts[0]["filename"])
	require.Equal(t, "generated/j1/a.png", result.Artifacts[0]["storage_key"])

	rows, err := notifications.ListByUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1, "terminal update rewrites the submission notification")
	require.Equal(t, domain.NotificationSuccess, rows[0].Kind)
}

func TestRunJobSubmitFailure(t *testing.T) {
	job := queuedJob("j1", "u1", "a red fox")
	jobs := newMemJobRepo(job)

	backend := &fakeBackend{
		submit: func(_ context.Context, _ jobclient.Request) (jobclient.SubmitAck, error) {
			return jobclient.SubmitAck{}, context.DeadlineExceeded
		},
		status: func(_ context.Context, _ string) (jobclient.StatusUpdate, error) {
			t.Fatal("no status poll expected after submit failure")
			return jobclient.StatusUpdate{}, nil
		},
	}
	runner := newTestRunner(t, jobs, &memNotificationRepo{}, backend)

	require.NoError(t, runner.runJob(context.Background(), job))
	require.Equal(t, domain.JobStatusFailed, jobs.jobs["j1"].Status)
	require.NotEmpty(t, jobs.jobs["j1"].ErrorMessage)
}

func TestRunJobBackendFailure(t *testing.T) {
	job := queuedJob("j1", "u1", "a red fox")
	jobs := newMemJobRepo(job)

	backend := &fakeBackend{
		submit: func(_ context.Context, _ jobclient.Request) (jobclient.SubmitAck, error) {
			return jobclient.SubmitAck{JobID: "R1", Status: jobclient.StatusQueued}, nil
		},
		status: func(_ context.Context, jobID string) (jobclient.StatusUpdate, error) {
			return jobclient.StatusUpdate{JobID: jobID, Status: jobclient.StatusFailed, ErrorMessage: "NSFW content rejected"}, nil
		},
	}
	runner := newTestRunner(t, jobs, &memNotificationRepo{}, backend)

	require.NoError(t, runner.runJob(context.Background(), job))
	require.Equal(t, domain.JobStatusFailed, jobs.jobs["j1"].Status)
	require.Equal(t, "NSFW content rejected", jobs.jobs["j1"].ErrorMessage)
}

func TestRunJobInvalidPrompt(t *testing.T) {
	job := &domain.Job{ID: "j1", UserID: "u1", Status: domain.JobStatusRunning, PromptJSON: []byte("{")}
	jobs := newMemJobRepo(job)

	backend := &fakeBackend{
		submit: func(_ context.Context, _ jobclient.Request) (jobclient.SubmitAck, error) {
			t.Fatal("no submission expected for an undecodable prompt")
			return jobclient.SubmitAck{}, nil
		},
	}
	runner := newTestRunner(t, jobs, &memNotificationRepo{}, backend)

	require.NoError(t, runner.runJob(context.Background(), job))
	require.Equal(t, domain.JobStatusFailed, jobs.jobs["j1"].Status)
}

func TestRunDrainsQueueUntilCancelled(t *testing.T) {
	job := queuedJob("j1", "u1", "a red fox")
	jobs := newMemJobRepo(job)

	backend := &fakeBackend{
		submit: func(_ context.Context, _ jobclient.Request) (jobclient.SubmitAck, error) {
			return jobclient.SubmitAck{JobID: "R1", Status: jobclient.StatusQueued}, nil
		},
		status: func(_ context.Context, jobID string) (jobclient.StatusUpdate, error) {
			return jobclient.StatusUpdate{JobID: jobID, Status: jobclient.StatusCompleted}, nil
		},
	}
	runner := newTestRunner(t, jobs, &memNotificationRepo{}, backend)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	require.Eventually(t, func() bool {
		jobs.mu.Lock()
		defer jobs.mu.Unlock()
		return jobs.jobs["j1"].Status == domain.JobStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestRunJobShutdownFinalizesCancelledRow(t *testing.T) {
	job := queuedJob("j1", "u1", "a red fox")
	jobs := newMemJobRepo(job)

	backend := &fakeBackend{
		submit: func(_ context.Context, _ jobclient.Request) (jobclient.SubmitAck, error) {
			return jobclient.SubmitAck{JobID: "R1", Status: jobclient.StatusQueued}, nil
		},
		status: func(_ context.Context, jobID string) (jobclient.StatusUpdate, error) {
			return jobclient.StatusUpdate{JobID: jobID, Status: jobclient.StatusRunning}, nil
		},
	}
	runner := newTestRunner(t, jobs, &memNotificationRepo{}, backend)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, runner.runJob(ctx, job))

	jobs.mu.Lock()
	defer jobs.mu.Unlock()
	require.Equal(t, domain.JobStatusCancelled, jobs.jobs["j1"].Status,
		"a job interrupted by shutdown must not stay running")
}

func TestRunJobLocalizedNotifications(t *testing.T) {
	promptJSON, _ := json.Marshal(map[string]any{"prompt": "un zorro rojo", "locale": "es"})
	job := &domain.Job{
		ID:         "j1",
		UserID:     "u1",
		Kind:       domain.JobKindGenerate,
		Status:     domain.JobStatusQueued,
		PromptJSON: promptJSON,
	}
	jobs := newMemJobRepo(job)
	notifications := &memNotificationRepo{}

	backend := &fakeBackend{
		submit: func(_ context.Context, _ jobclient.Request) (jobclient.SubmitAck, error) {
			return jobclient.SubmitAck{JobID: "R1", Status: jobclient.StatusQueued}, nil
		},
		status: func(_ context.Context, jobID string) (jobclient.StatusUpdate, error) {
			return jobclient.StatusUpdate{JobID: jobID, Status: jobclient.StatusCompleted}, nil
		},
	}
	runner := newTestRunner(t, jobs, notifications, backend)

	require.NoError(t, runner.runJob(context.Background(), job))

	rows, err := notifications.ListByUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Generación Completada", rows[0].Title)
}
