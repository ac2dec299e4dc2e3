package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezkam/jobq/internal/application/queue"
	"github.com/rezkam/jobq/internal/application/worker"
	"github.com/rezkam/jobq/internal/domain"
)

// Store is the PostgreSQL implementation of the queue engine and the
// location store. It exclusively owns writes to job_queue, job_runs and
// locations; workers only ever hold a claim through the status/lock columns.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ queue.Engine         = (*Store)(nil)
	_ worker.LocationStore = (*Store)(nil)
)

// NewStore creates a store on an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Now round-trips the database clock. Used by the health endpoint.
func (s *Store) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := s.pool.QueryRow(ctx, "SELECT now()").Scan(&now); err != nil {
		return time.Time{}, classify(fmt.Errorf("failed to read database time: %w", err))
	}
	return now.UTC(), nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// classify maps contention SQLSTATEs onto domain.ErrTransient so callers can
// retry on the next poll tick instead of treating the failure as fatal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"53300": // too_many_connections
			return fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
	}
	return err
}
