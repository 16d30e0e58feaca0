package jobclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultPollInterval is the fixed delay between status polls.
const DefaultPollInterval = 2 * time.Second

var (
	// ErrSuperseded is returned from Submit when a newer submission replaced
	// this one before its acknowledgement arrived.
	ErrSuperseded = errors.New("jobclient: submission superseded")
	// ErrCancelled is returned from Submit when Cancel was called while the
	// submission round-trip was still in flight.
	ErrCancelled = errors.New("jobclient: job cancelled")
	// ErrNotSubmitted is returned from Wait when nothing was ever submitted.
	ErrNotSubmitted = errors.New("jobclient: no submission to wait for")
)

// Options tunes a Controller. The zero value gives the production behavior:
// a 2 s poll interval and no per-request timeout.
type Options struct {
	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
	// RequestTimeout bounds each backend round-trip when positive. Polls never
	// overlap regardless: the next poll is scheduled only after the previous
	// one resolves.
	RequestTimeout time.Duration
}

// Controller owns the state of one outstanding remote job. It is safe for
// concurrent use; the Record it exposes is owned exclusively by the controller
// and mutated only in response to submission results and poll responses.
type Controller struct {
	backend        Backend
	notifier       Notifier
	pollInterval   time.Duration
	requestTimeout time.Duration

	mu         sync.Mutex
	rec        Record
	gen        uint64
	cancelPoll context.CancelFunc
	handle     Handle
	done       chan struct{}
	finished   bool
}

// New builds a Controller around the given collaborators.
func New(backend Backend, notifier Notifier, opts Options) *Controller {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Controller{
		backend:        backend,
		notifier:       notifier,
		pollInterval:   interval,
		requestTimeout: opts.RequestTimeout,
		rec:            Record{Status: StatusIdle},
	}
}

// State returns a snapshot of the current record. Pure, safe to call at any
// time including mid-poll. The snapshot owns its Output slices; mutating it
// never reaches back into the controller's record.
func (c *Controller) State() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.rec
	if rec.Output != nil {
		out := Output{
			Artifacts: append([]Artifact(nil), rec.Output.Artifacts...),
			Warnings:  append([]string(nil), rec.Output.Warnings...),
		}
		rec.Output = &out
	}
	return rec
}

// Submit starts a new job. A prior non-terminal job is superseded: its poll
// chain is cancelled and its record marked cancelled before the new submission
// begins, so two poll loops never write into the same observable state.
//
// On backend rejection the record transitions straight to FAILED, no poll is
// scheduled, and the error is returned after being surfaced to the Notifier.
func (c *Controller) Submit(ctx context.Context, req Request) error {
	c.mu.Lock()
	c.supersedeLocked()
	c.gen++
	gen := c.gen
	c.rec = Record{Status: StatusIdle}
	c.handle = ""
	c.done = make(chan struct{})
	c.finished = false
	c.mu.Unlock()

	ack, err := c.submitOnce(ctx, req)
	if err != nil {
		c.failSubmit(gen, err)
		return err
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if c.rec.Status.Terminal() {
		c.mu.Unlock()
		return ErrCancelled
	}
	c.rec.JobID = ack.JobID
	c.rec.Status = StatusQueued
	pollCtx, cancel := context.WithCancel(context.Background())
	c.cancelPoll = cancel
	c.mu.Unlock()

	h := c.notifier.Show(KindInfo, "Job submitted", fmt.Sprintf("generation job %s queued", ack.JobID))
	c.mu.Lock()
	if gen == c.gen {
		c.handle = h
	}
	c.mu.Unlock()

	go c.pollLoop(pollCtx, gen, ack.JobID)
	return nil
}

// Cancel stops any pending scheduled poll and marks a non-terminal job
// cancelled. Idempotent; calling it before any submission is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.cancelPoll != nil {
		c.cancelPoll()
		c.cancelPoll = nil
	}
	if c.done == nil || c.rec.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	c.rec.Status = StatusCancelled
	done, already := c.done, c.finished
	c.finished = true
	c.mu.Unlock()
	if !already {
		close(done)
	}
}

// Wait blocks until the most recently submitted job reaches a terminal state
// or ctx expires, then returns the record snapshot.
func (c *Controller) Wait(ctx context.Context) (Record, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return c.State(), ErrNotSubmitted
	}
	select {
	case <-ctx.Done():
		return c.State(), ctx.Err()
	case <-done:
		return c.State(), nil
	}
}

// supersedeLocked tears down the previous job, if any, ahead of a new
// submission. Caller holds c.mu.
func (c *Controller) supersedeLocked() {
	if c.cancelPoll != nil {
		c.cancelPoll()
		c.cancelPoll = nil
	}
	if c.done == nil {
		return
	}
	if !c.rec.Status.Terminal() {
		c.rec.Status = StatusCancelled
	}
	if !c.finished {
		close(c.done)
		c.finished = true
	}
}

func (c *Controller) submitOnce(ctx context.Context, req Request) (SubmitAck, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	return c.backend.Submit(ctx, req)
}

func (c *Controller) failSubmit(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.rec.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	c.rec.Status = StatusFailed
	c.rec.ErrorMessage = cause.Error()
	done := c.done
	c.finished = true
	c.mu.Unlock()
	c.notifier.Show(KindError, "Submission failed", cause.Error())
	close(done)
}

// pollLoop is the single logical poll chain for one job. Each poll is
// scheduled only after the previous round-trip resolves, so polls never
// overlap.
func (c *Controller) pollLoop(ctx context.Context, gen uint64, jobID string) {
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		upd, err := c.getStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.failPoll(gen, jobID, err)
			return
		}
		if !c.apply(gen, jobID, upd) {
			return
		}
		timer.Reset(c.pollInterval)
	}
}

func (c *Controller) getStatus(ctx context.Context, jobID string) (StatusUpdate, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	return c.backend.GetStatus(ctx, jobID)
}

// apply folds one poll response into the record. It returns true when polling
// should continue. Responses tagged with a different job ID, responses for a
// superseded generation, and responses arriving after a terminal state are
// discarded without observable effect.
func (c *Controller) apply(gen uint64, jobID string, upd StatusUpdate) bool {
	if upd.JobID != "" && upd.JobID != jobID {
		return true
	}
	c.mu.Lock()
	if gen != c.gen || c.rec.JobID != jobID || c.rec.Status.Terminal() {
		c.mu.Unlock()
		return false
	}
	if upd.QueueDelayMs != nil {
		c.rec.QueueDelayMs = upd.QueueDelayMs
	}
	if upd.ExecutionMs != nil {
		c.rec.ExecutionMs = upd.ExecutionMs
	}
	switch upd.Status {
	case StatusQueued, StatusRunning:
		c.rec.Status = upd.Status
		c.mu.Unlock()
		return true
	case StatusCompleted:
		c.rec.Status = StatusCompleted
		c.rec.Output = upd.Output
		c.finishLocked(KindSuccess, "Generation complete", completionMessage(upd.Output))
		return false
	case StatusFailed:
		msg := upd.ErrorMessage
		if msg == "" {
			msg = "job failed"
		}
		c.rec.Status = StatusFailed
		c.rec.ErrorMessage = msg
		c.finishLocked(KindError, "Generation failed", msg)
		return false
	default:
		msg := fmt.Sprintf("unexpected job status %q", upd.Status)
		c.rec.Status = StatusFailed
		c.rec.ErrorMessage = msg
		c.finishLocked(KindError, "Generation failed", msg)
		return false
	}
}

func (c *Controller) failPoll(gen uint64, jobID string, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.rec.JobID != jobID || c.rec.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	msg := fmt.Sprintf("status poll failed: %v", cause)
	c.rec.Status = StatusFailed
	c.rec.ErrorMessage = msg
	c.finishLocked(KindError, "Generation failed", msg)
}

// finishLocked emits the single terminal notification and releases waiters.
// Caller holds c.mu; the lock is released before the notifier runs.
func (c *Controller) finishLocked(kind Kind, title, message string) {
	h := c.handle
	done := c.done
	already := c.finished
	c.finished = true
	c.mu.Unlock()
	c.notifier.Update(h, kind, title, message)
	if !already {
		close(done)
	}
}

func completionMessage(out *Output) string {
	if out == nil || len(out.Artifacts) == 0 {
		return "job completed"
	}
	if len(out.Warnings) > 0 {
		return fmt.Sprintf("%d artifact(s) ready, %d warning(s)", len(out.Artifacts), len(out.Warnings))
	}
	return fmt.Sprintf("%d artifact(s) ready", len(out.Artifacts))
}
