package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rezkam/jobq/internal/application/queue"
	"github.com/rezkam/jobq/internal/domain"
)

// Enqueue inserts or coalesces a job with reset-unless-running semantics.
// The whole operation is one upsert statement: a concurrent claim on the same
// row serializes against it through the row lock, so in-flight work is never
// overwritten.
func (s *Store) Enqueue(ctx context.Context, params queue.EnqueueParams) (*domain.Job, error) {
	if err := params.Normalize(time.Now().UTC()); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO job_queue (type, key, payload, status, run_after, max_attempts)
		VALUES ($1, $2, $3, 'queued', $4, $5)
		ON CONFLICT (type, key) DO UPDATE SET
			payload      = CASE WHEN job_queue.status = 'running' THEN job_queue.payload   ELSE EXCLUDED.payload   END,
			status       = CASE WHEN job_queue.status = 'running' THEN job_queue.status    ELSE 'queued'::job_status END,
			run_after    = CASE WHEN job_queue.status = 'running' THEN job_queue.run_after ELSE EXCLUDED.run_after END,
			attempts     = CASE WHEN job_queue.status = 'running' THEN job_queue.attempts  ELSE 0 END,
			max_attempts = EXCLUDED.max_attempts,
			last_error    = NULL,
			last_error_at = NULL,
			updated_at    = now()
		RETURNING `+jobColumns,
		params.Type, params.Key, []byte(params.Payload), params.RunAfter, params.MaxAttempts,
	)

	job, err := scanJob(row)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to enqueue job %s/%s: %w", params.Type, params.Key, err))
	}
	return job, nil
}

// Claim atomically locks and claims the earliest-due runnable job. The CTE
// takes a row-level lock with SKIP LOCKED so concurrent claimers scan past
// rows already taken, then the UPDATE binds the row to the worker and spends
// one attempt.
func (s *Store) Claim(ctx context.Context, workerID string) (*domain.Job, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker id is required", domain.ErrInvalidInput)
	}

	row := s.pool.QueryRow(ctx, `
		WITH next_job AS (
			SELECT id
			FROM job_queue
			WHERE status IN ('queued', 'retrying')
			  AND run_after <= now()
			ORDER BY run_after, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE job_queue j
		SET status     = 'running',
		    locked_by  = $1,
		    locked_at  = now(),
		    attempts   = j.attempts + 1,
		    updated_at = now()
		FROM next_job
		WHERE j.id = next_job.id
		RETURNING `+jobColumnsPrefixed,
		workerID,
	)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(fmt.Errorf("failed to claim job: %w", err))
	}
	return job, nil
}

// Complete records a success run and finalizes the job in one transaction.
func (s *Store) Complete(ctx context.Context, claim *domain.Job, startedAt time.Time, resultSummary string) error {
	finishedAt := time.Now().UTC()
	summary := queue.Truncate(resultSummary, queue.ResultSummaryMax)

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO job_runs (job_id, type, key, attempt, status, started_at, finished_at, duration_ms, result_summary)
			VALUES ($1, $2, $3, $4, 'success', $5, $6, $7, $8)`,
			claim.ID, claim.Type, claim.Key, claim.Attempts,
			startedAt, finishedAt, durationMS(startedAt, finishedAt), nullableString(summary),
		)
		if err != nil {
			return classify(fmt.Errorf("failed to record success run for job %d: %w", claim.ID, err))
		}

		_, err = tx.Exec(ctx, `
			UPDATE job_queue
			SET status        = 'succeeded',
			    locked_by     = NULL,
			    locked_at     = NULL,
			    last_error    = NULL,
			    last_error_at = NULL,
			    updated_at    = now()
			WHERE id = $1`,
			claim.ID,
		)
		if err != nil {
			return classify(fmt.Errorf("failed to finalize job %d: %w", claim.ID, err))
		}
		return nil
	})
	return err
}

// Fail records a fail run and either schedules a retry with exponential
// backoff or dead-letters the job, in one transaction. The attempt was
// already spent at claim time, so a crash between claim and completion still
// consumes retry budget.
func (s *Store) Fail(ctx context.Context, claim *domain.Job, startedAt time.Time, jobErr queue.JobError) error {
	finishedAt := time.Now().UTC()

	message := queue.Truncate(jobErr.Message, queue.ErrorMessageMax)
	if message == "" {
		message = "Unknown error"
	}
	stack := queue.Truncate(jobErr.Stack, queue.ErrorStackMax)

	willRetry := claim.Attempts < claim.MaxAttempts
	var runAfter *time.Time
	status := domain.StatusDead
	if willRetry {
		status = domain.StatusRetrying
		t := finishedAt.Add(queue.Backoff(claim.Attempts))
		runAfter = &t
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO job_runs (job_id, type, key, attempt, status, started_at, finished_at, duration_ms, error_message, error_stack)
			VALUES ($1, $2, $3, $4, 'fail', $5, $6, $7, $8, $9)`,
			claim.ID, claim.Type, claim.Key, claim.Attempts,
			startedAt, finishedAt, durationMS(startedAt, finishedAt),
			message, nullableString(stack),
		)
		if err != nil {
			return classify(fmt.Errorf("failed to record fail run for job %d: %w", claim.ID, err))
		}

		// run_after is advanced only when retrying; a dead job keeps its
		// last scheduled instant.
		_, err = tx.Exec(ctx, `
			UPDATE job_queue
			SET status        = $2,
			    locked_by     = NULL,
			    locked_at     = NULL,
			    last_error    = $3,
			    last_error_at = now(),
			    run_after     = COALESCE($4, run_after),
			    updated_at    = now()
			WHERE id = $1`,
			claim.ID, string(status), message, runAfter,
		)
		if err != nil {
			return classify(fmt.Errorf("failed to mark job %d as %s: %w", claim.ID, status, err))
		}
		return nil
	})
	return err
}

// ReclaimStale promotes running jobs with expired leases back to retrying.
// No run row is written: the attempt had no observed outcome.
func (s *Store) ReclaimStale(ctx context.Context, lease time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE job_queue
		SET status        = 'retrying',
		    locked_by     = NULL,
		    locked_at     = NULL,
		    run_after     = now(),
		    last_error    = COALESCE(last_error, 'stale lease reclaimed'),
		    last_error_at = now(),
		    updated_at    = now()
		WHERE status = 'running'
		  AND locked_at < now() - make_interval(secs => $1)`,
		lease.Seconds(),
	)
	if err != nil {
		return 0, classify(fmt.Errorf("failed to reclaim stale leases: %w", err))
	}
	return tag.RowsAffected(), nil
}

// ListJobs returns jobs newest-updated first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, status *domain.JobStatus, limit int) ([]*domain.Job, error) {
	var statusFilter *string
	if status != nil {
		v := string(*status)
		statusFilter = &v
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM job_queue
		WHERE ($1::job_status IS NULL OR status = $1::job_status)
		ORDER BY updated_at DESC
		LIMIT $2`,
		statusFilter, queue.ClampLimit(limit),
	)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list jobs: %w", err))
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to list jobs: %w", err))
	}
	return jobs, nil
}

// GetJob returns a single job or domain.ErrJobNotFound.
func (s *Store) GetJob(ctx context.Context, id int64) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM job_queue
		WHERE id = $1`,
		id,
	)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %d", domain.ErrJobNotFound, id)
		}
		return nil, classify(fmt.Errorf("failed to get job %d: %w", id, err))
	}
	return job, nil
}

// ListRuns returns the attempt records for a job, newest attempt first.
func (s *Store) ListRuns(ctx context.Context, jobID int64, limit int) ([]*domain.JobRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM job_runs
		WHERE job_id = $1
		ORDER BY attempt DESC, id DESC
		LIMIT $2`,
		jobID, queue.ClampLimit(limit),
	)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list runs for job %d: %w", jobID, err))
	}
	defer rows.Close()

	var runs []*domain.JobRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to list runs for job %d: %w", jobID, err))
	}
	return runs, nil
}

func durationMS(startedAt, finishedAt time.Time) int64 {
	ms := finishedAt.Sub(startedAt).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
