package postgres

import (
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rezkam/jobq/internal/domain"
)

// Column lists shared by every job_queue / job_runs query so RETURNING and
// SELECT rows scan through one code path.
const (
	jobColumns = `id, type, key, payload, status, run_after, attempts, max_attempts,
		locked_by, locked_at, last_error, last_error_at, created_at, updated_at`

	// jobColumnsPrefixed qualifies jobColumns with the job_queue alias used by
	// the claim CTE, where a bare "id" would be ambiguous.
	jobColumnsPrefixed = `j.id, j.type, j.key, j.payload, j.status, j.run_after, j.attempts, j.max_attempts,
		j.locked_by, j.locked_at, j.last_error, j.last_error_at, j.created_at, j.updated_at`

	runColumns = `id, job_id, type, key, attempt, status, started_at, finished_at,
		duration_ms, error_message, error_stack, result_summary`
)

// scanJob scans one job_queue row in jobColumns order. All timestamps are
// normalized to UTC regardless of the session timezone.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		j      domain.Job
		status string
	)
	err := row.Scan(
		&j.ID, &j.Type, &j.Key, &j.Payload, &status, &j.RunAfter,
		&j.Attempts, &j.MaxAttempts, &j.LockedBy, &j.LockedAt,
		&j.LastError, &j.LastErrorAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = domain.JobStatus(status)
	j.RunAfter = j.RunAfter.UTC()
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	j.LockedAt = utcPtr(j.LockedAt)
	j.LastErrorAt = utcPtr(j.LastErrorAt)
	return &j, nil
}

// scanRun scans one job_runs row in runColumns order.
func scanRun(row pgx.Row) (*domain.JobRun, error) {
	var (
		r      domain.JobRun
		status string
	)
	err := row.Scan(
		&r.ID, &r.JobID, &r.Type, &r.Key, &r.Attempt, &status,
		&r.StartedAt, &r.FinishedAt, &r.DurationMS,
		&r.ErrorMessage, &r.ErrorStack, &r.ResultSummary,
	)
	if err != nil {
		return nil, err
	}
	r.Status = domain.RunStatus(status)
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return &r, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// nullableString maps "" to NULL for optional text columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
