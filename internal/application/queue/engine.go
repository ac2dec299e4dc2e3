package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rezkam/jobq/internal/domain"
)

// Engine is the durable job queue. All methods are safe for concurrent use
// from multiple worker processes; cross-process coordination is delegated to
// row-level database locks, never to in-memory state.
type Engine interface {
	// Enqueue inserts a job in queued state, or coalesces onto the existing
	// (type, key) row with reset-unless-running semantics: a running row keeps
	// its payload, status, run_after and attempts so in-flight work is never
	// stomped; any other row is overwritten and re-queued with attempts reset.
	// Returns the resulting row.
	Enqueue(ctx context.Context, params EnqueueParams) (*domain.Job, error)

	// Claim atomically claims the earliest-due runnable job (status queued or
	// retrying, run_after <= now), ordered by (run_after, id). The claim bumps
	// attempts and binds the row to workerID. Returns (nil, nil) when no job
	// is runnable. Concurrent claimers skip rows locked by each other, so two
	// workers never claim the same job.
	Claim(ctx context.Context, workerID string) (*domain.Job, error)

	// Complete records a successful attempt: appends a success run and moves
	// the job to succeeded, clearing the lock and last-error columns. Both
	// writes commit in one transaction.
	Complete(ctx context.Context, claim *domain.Job, startedAt time.Time, resultSummary string) error

	// Fail records a failed attempt: appends a fail run and either schedules
	// a retry after Backoff(attempt) or dead-letters the job when the claim
	// spent its last attempt. Both writes commit in one transaction.
	Fail(ctx context.Context, claim *domain.Job, startedAt time.Time, jobErr JobError) error

	// ReclaimStale returns every running job whose lease expired before
	// now-lease to retrying, immediately runnable. No run is recorded: a
	// reclaim is evidence of absence, not an observed outcome. Returns the
	// number of reclaimed jobs.
	ReclaimStale(ctx context.Context, lease time.Duration) (int64, error)

	// ListJobs returns jobs ordered by updated_at descending, optionally
	// filtered by status. The limit is clamped to [1, MaxListLimit].
	ListJobs(ctx context.Context, status *domain.JobStatus, limit int) ([]*domain.Job, error)

	// GetJob returns a single job or domain.ErrJobNotFound.
	GetJob(ctx context.Context, id int64) (*domain.Job, error)

	// ListRuns returns the attempt records for a job, newest attempt first.
	// The limit is clamped to [1, MaxListLimit].
	ListRuns(ctx context.Context, jobID int64, limit int) ([]*domain.JobRun, error)
}

// Enqueue and listing bounds.
const (
	DefaultMaxAttempts = 5
	MaxAttemptsCeiling = 50

	DefaultListLimit = 50
	MaxListLimit     = 200
)

// JobError carries the failure summary recorded on a fail run. Stack is empty
// unless the handler panicked.
type JobError struct {
	Message string
	Stack   string
}

// EnqueueParams are the caller-supplied fields of a new or re-enqueued job.
type EnqueueParams struct {
	Type        string
	Key         string
	Payload     json.RawMessage // defaults to {}
	RunAfter    time.Time       // zero means now
	MaxAttempts int             // zero means DefaultMaxAttempts
}

// Normalize applies defaults and validates the parameters.
// Returns an error wrapping domain.ErrInvalidInput on bad input.
func (p *EnqueueParams) Normalize(now time.Time) error {
	if p.Type == "" {
		return fmt.Errorf("%w: type is required", domain.ErrInvalidInput)
	}
	if p.Key == "" {
		return fmt.Errorf("%w: key is required", domain.ErrInvalidInput)
	}
	if len(p.Payload) == 0 {
		p.Payload = json.RawMessage(`{}`)
	}
	if p.RunAfter.IsZero() {
		p.RunAfter = now
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxAttempts < 1 || p.MaxAttempts > MaxAttemptsCeiling {
		return fmt.Errorf("%w: max_attempts must be between 1 and %d", domain.ErrInvalidInput, MaxAttemptsCeiling)
	}
	return nil
}

// ClampLimit bounds a caller-supplied listing limit to [1, MaxListLimit],
// substituting DefaultListLimit for zero or negative values.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
