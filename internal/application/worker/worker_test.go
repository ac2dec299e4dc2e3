package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/jobq/internal/application/queue"
	"github.com/rezkam/jobq/internal/domain"
)

// engineStub implements queue.Engine with overridable function fields.
// Unset fields return zero values.
type engineStub struct {
	mu sync.Mutex

	claimFn    func(ctx context.Context, workerID string) (*domain.Job, error)
	completeFn func(ctx context.Context, claim *domain.Job, startedAt time.Time, resultSummary string) error
	failFn     func(ctx context.Context, claim *domain.Job, startedAt time.Time, jobErr queue.JobError) error
	reclaimFn  func(ctx context.Context, lease time.Duration) (int64, error)

	completes []string
	failures  []queue.JobError
	reclaims  int
}

func (e *engineStub) Enqueue(ctx context.Context, params queue.EnqueueParams) (*domain.Job, error) {
	return nil, nil
}

func (e *engineStub) Claim(ctx context.Context, workerID string) (*domain.Job, error) {
	if e.claimFn != nil {
		return e.claimFn(ctx, workerID)
	}
	return nil, nil
}

func (e *engineStub) Complete(ctx context.Context, claim *domain.Job, startedAt time.Time, resultSummary string) error {
	e.mu.Lock()
	e.completes = append(e.completes, resultSummary)
	e.mu.Unlock()
	if e.completeFn != nil {
		return e.completeFn(ctx, claim, startedAt, resultSummary)
	}
	return nil
}

func (e *engineStub) Fail(ctx context.Context, claim *domain.Job, startedAt time.Time, jobErr queue.JobError) error {
	e.mu.Lock()
	e.failures = append(e.failures, jobErr)
	e.mu.Unlock()
	if e.failFn != nil {
		return e.failFn(ctx, claim, startedAt, jobErr)
	}
	return nil
}

func (e *engineStub) ReclaimStale(ctx context.Context, lease time.Duration) (int64, error) {
	e.mu.Lock()
	e.reclaims++
	e.mu.Unlock()
	if e.reclaimFn != nil {
		return e.reclaimFn(ctx, lease)
	}
	return 0, nil
}

func (e *engineStub) ListJobs(ctx context.Context, status *domain.JobStatus, limit int) ([]*domain.Job, error) {
	return nil, nil
}

func (e *engineStub) GetJob(ctx context.Context, id int64) (*domain.Job, error) {
	return nil, domain.ErrJobNotFound
}

func (e *engineStub) ListRuns(ctx context.Context, jobID int64, limit int) ([]*domain.JobRun, error) {
	return nil, nil
}

func (e *engineStub) completedSummaries() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.completes...)
}

func (e *engineStub) failedErrors() []queue.JobError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]queue.JobError(nil), e.failures...)
}

func (e *engineStub) reclaimCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reclaims
}

func testJob(jobType string) *domain.Job {
	now := time.Now().UTC()
	return &domain.Job{
		ID:          1,
		Type:        jobType,
		Key:         "k1",
		Payload:     json.RawMessage(`{"n":1}`),
		Status:      domain.StatusRunning,
		RunAfter:    now,
		Attempts:    1,
		MaxAttempts: 5,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// claimOnce returns the job on the first claim, then signals cancel and
// reports no work.
func claimOnce(job *domain.Job, cancel context.CancelFunc) func(ctx context.Context, workerID string) (*domain.Job, error) {
	var once sync.Once
	var mu sync.Mutex
	delivered := false
	return func(ctx context.Context, workerID string) (*domain.Job, error) {
		mu.Lock()
		defer mu.Unlock()
		if !delivered {
			delivered = true
			return job, nil
		}
		once.Do(cancel)
		return nil, nil
	}
}

func runPool(t *testing.T, engine *engineStub, registry *Registry) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if engine.claimFn == nil {
		engine.claimFn = claimOnce(nil, cancel)
	}

	pool := New(engine, registry, Config{
		WorkerID:     "test-worker",
		Concurrency:  1,
		PollInterval: 5 * time.Millisecond,
	})
	return pool.Run(ctx)
}

func TestPool_CompletesSuccessfulJob(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &engineStub{}
	engine.claimFn = claimOnce(testJob("ping"), cancel)

	registry := NewRegistry()
	require.NoError(t, registry.Register("ping", NewPingHandler()))

	pool := New(engine, registry, Config{WorkerID: "test-worker", Concurrency: 1, PollInterval: 5 * time.Millisecond})
	require.NoError(t, pool.Run(ctx))

	summaries := engine.completedSummaries()
	require.Len(t, summaries, 1)
	assert.JSONEq(t, `{"ok":true,"payload":{"n":1}}`, summaries[0])
	assert.Empty(t, engine.failedErrors())
}

func TestPool_FailsJobWithoutHandler(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &engineStub{}
	engine.claimFn = claimOnce(testJob("mystery"), cancel)

	pool := New(engine, NewRegistry(), Config{WorkerID: "test-worker", Concurrency: 1, PollInterval: 5 * time.Millisecond})
	require.NoError(t, pool.Run(ctx))

	failures := engine.failedErrors()
	require.Len(t, failures, 1)
	assert.Equal(t, "No handler registered for job type mystery", failures[0].Message)
	assert.Empty(t, failures[0].Stack)
	assert.Empty(t, engine.completedSummaries())
}

func TestPool_FailsJobOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &engineStub{}
	engine.claimFn = claimOnce(testJob("boom"), cancel)

	registry := NewRegistry()
	require.NoError(t, registry.Register("boom", func(ctx context.Context, payload json.RawMessage) (any, error) {
		return nil, errors.New("upstream said no")
	}))

	pool := New(engine, registry, Config{WorkerID: "test-worker", Concurrency: 1, PollInterval: 5 * time.Millisecond})
	require.NoError(t, pool.Run(ctx))

	failures := engine.failedErrors()
	require.Len(t, failures, 1)
	assert.Equal(t, "upstream said no", failures[0].Message)
}

func TestPool_ContainsHandlerPanic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &engineStub{}
	engine.claimFn = claimOnce(testJob("panicky"), cancel)

	registry := NewRegistry()
	require.NoError(t, registry.Register("panicky", func(ctx context.Context, payload json.RawMessage) (any, error) {
		panic("nope")
	}))

	pool := New(engine, registry, Config{WorkerID: "test-worker", Concurrency: 1, PollInterval: 5 * time.Millisecond})
	require.NoError(t, pool.Run(ctx))

	failures := engine.failedErrors()
	require.Len(t, failures, 1)
	assert.Equal(t, "panic: nope", failures[0].Message)
	assert.NotEmpty(t, failures[0].Stack)
}

func TestPool_FinishesInFlightJobOnShutdown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &engineStub{}
	engine.claimFn = claimOnce(testJob("slow"), cancel)

	registry := NewRegistry()
	require.NoError(t, registry.Register("slow", func(ctx context.Context, payload json.RawMessage) (any, error) {
		// Shutdown arrives while the handler is running. The handler's
		// context must stay alive so the attempt finishes normally.
		cancel()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return map[string]string{"state": "done"}, nil
	}))

	pool := New(engine, registry, Config{WorkerID: "test-worker", Concurrency: 1, PollInterval: 5 * time.Millisecond})
	require.NoError(t, pool.Run(ctx))

	assert.Empty(t, engine.failedErrors())
	summaries := engine.completedSummaries()
	require.Len(t, summaries, 1)
	assert.JSONEq(t, `{"state":"done"}`, summaries[0])
}

func TestPool_ToleratesTransientClaimErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &engineStub{}
	var calls int
	var mu sync.Mutex
	engine.claimFn = func(ctx context.Context, workerID string) (*domain.Job, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("%w: deadlock detected", domain.ErrTransient)
		}
		cancel()
		return nil, nil
	}

	pool := New(engine, NewRegistry(), Config{WorkerID: "test-worker", Concurrency: 1, PollInterval: 5 * time.Millisecond})
	assert.NoError(t, pool.Run(ctx))
}

func TestPool_StopsOnFatalClaimError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &engineStub{}
	engine.claimFn = func(ctx context.Context, workerID string) (*domain.Job, error) {
		return nil, errors.New("schema is gone")
	}

	pool := New(engine, NewRegistry(), Config{WorkerID: "test-worker", Concurrency: 1, PollInterval: 5 * time.Millisecond})
	err := pool.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema is gone")
}

func TestPool_SweepsStaleLeasesOnStartup(t *testing.T) {
	engine := &engineStub{}
	require.NoError(t, runPool(t, engine, NewRegistry()))

	assert.GreaterOrEqual(t, engine.reclaimCount(), 1)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	assert.NotEmpty(t, cfg.WorkerID)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.LeaseDuration)
	assert.Equal(t, 30*time.Second, cfg.ReclaimInterval)
}
