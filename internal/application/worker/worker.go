package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rezkam/jobq/internal/application/queue"
	"github.com/rezkam/jobq/internal/domain"
)

// Config parameterizes one worker process.
type Config struct {
	WorkerID        string        // unique claimer identity (default: <hostname>-<pid>)
	Concurrency     int           // parallel claim tasks per batch (default: 2)
	PollInterval    time.Duration // idle sleep between empty batches (default: 1s)
	LeaseDuration   time.Duration // running jobs older than this are reclaimable (default: 2m)
	ReclaimInterval time.Duration // how often to sweep stale leases (default: 30s)
}

func (c *Config) applyDefaults() {
	if c.WorkerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "worker"
		}
		c.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = 2 * time.Minute
	}
	if c.ReclaimInterval <= 0 {
		c.ReclaimInterval = 30 * time.Second
	}
}

// Pool is the per-process dispatch loop: it claims jobs in concurrency-bounded
// batches, invokes the registered handler for each claim, and reports the
// outcome back to the engine. A background ticker sweeps stale leases.
type Pool struct {
	engine   queue.Engine
	registry *Registry
	cfg      Config
	wg       sync.WaitGroup
}

// New creates a dispatch pool. Zero config fields take defaults.
func New(engine queue.Engine, registry *Registry, cfg Config) *Pool {
	cfg.applyDefaults()
	return &Pool{
		engine:   engine,
		registry: registry,
		cfg:      cfg,
	}
}

// WorkerID returns the effective claimer identity after defaulting.
func (p *Pool) WorkerID() string {
	return p.cfg.WorkerID
}

// Run drives the dispatch loop until ctx is cancelled. It finishes the
// in-flight batch before returning on shutdown and returns nil on clean exit.
// A non-nil error is fatal: the engine itself failed in a non-transient way.
func (p *Pool) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "worker started",
		"worker_id", p.cfg.WorkerID,
		"concurrency", p.cfg.Concurrency,
		"poll_interval", p.cfg.PollInterval,
		"lease", p.cfg.LeaseDuration,
		"handlers", p.registry.Types())

	p.wg.Go(func() { p.runReclaim(ctx) })
	defer p.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "shutdown requested, draining worker")
			return nil
		default:
		}

		claimed, err := p.runBatch(ctx)
		if err != nil {
			return fmt.Errorf("dispatch batch failed: %w", err)
		}

		if claimed == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.cfg.PollInterval):
			}
		}
	}
}

// runReclaim sweeps stale leases every ReclaimInterval, starting immediately.
func (p *Pool) runReclaim(ctx context.Context) {
	p.reclaimOnce(ctx)

	ticker := time.NewTicker(p.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reclaimOnce(ctx)
		}
	}
}

func (p *Pool) reclaimOnce(ctx context.Context) {
	reclaimed, err := p.engine.ReclaimStale(ctx, p.cfg.LeaseDuration)
	if err != nil {
		if ctx.Err() == nil {
			slog.WarnContext(ctx, "stale lease sweep failed", "error", err)
		}
		return
	}
	if reclaimed > 0 {
		slog.InfoContext(ctx, "reclaimed stale leases", "count", reclaimed)
	}
}

type taskResult struct {
	claimed bool
	err     error
}

// runBatch launches up to Concurrency parallel claim tasks and waits for all
// of them. Returns how many tasks obtained a claim; the error is non-nil only
// for fatal engine failures.
func (p *Pool) runBatch(ctx context.Context) (int, error) {
	results := make(chan taskResult, p.cfg.Concurrency)

	var wg sync.WaitGroup
	for range p.cfg.Concurrency {
		wg.Go(func() { results <- p.runOne(ctx) })
	}
	wg.Wait()
	close(results)

	claimed := 0
	var errs []error
	for r := range results {
		if r.claimed {
			claimed++
		}
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return claimed, errors.Join(errs...)
}

// runOne claims at most one job and sees it through to a reported outcome.
func (p *Pool) runOne(ctx context.Context) taskResult {
	job, err := p.engine.Claim(ctx, p.cfg.WorkerID)
	if err != nil {
		if errors.Is(err, domain.ErrTransient) || ctx.Err() != nil {
			slog.WarnContext(ctx, "claim contention, retrying next tick", "error", err)
			return taskResult{}
		}
		return taskResult{err: fmt.Errorf("claim failed: %w", err)}
	}
	if job == nil {
		return taskResult{}
	}

	slog.InfoContext(ctx, "claimed job",
		"job_id", job.ID, "type", job.Type, "key", job.Key, "attempt", job.Attempts)

	// A claimed job runs to completion even when shutdown starts
	// mid-handler: the handler and the outcome report both get an
	// uncancellable context, so in-flight work is neither aborted into a
	// spurious failure nor left to the lease sweeper. Only claiming and
	// polling observe shutdown.
	jobCtx := context.WithoutCancel(ctx)
	started := time.Now().UTC()

	result, jobErr := p.execute(jobCtx, job)
	if jobErr != nil {
		slog.WarnContext(ctx, "job attempt failed",
			"job_id", job.ID, "type", job.Type, "attempt", job.Attempts, "error", jobErr.Message)
		if err := p.engine.Fail(jobCtx, job, started, *jobErr); err != nil {
			return taskResult{claimed: true, err: fmt.Errorf("recording failure for job %d: %w", job.ID, err)}
		}
		return taskResult{claimed: true}
	}

	summary, err := json.Marshal(result)
	if err != nil {
		slog.WarnContext(ctx, "handler result not serializable", "job_id", job.ID, "error", err)
		summary = nil
	}
	if err := p.engine.Complete(jobCtx, job, started, string(summary)); err != nil {
		return taskResult{claimed: true, err: fmt.Errorf("recording success for job %d: %w", job.ID, err)}
	}

	slog.InfoContext(ctx, "job succeeded",
		"job_id", job.ID, "type", job.Type, "attempt", job.Attempts,
		"duration_ms", time.Since(started).Milliseconds())
	return taskResult{claimed: true}
}

// execute resolves and invokes the handler with panic containment. A panic is
// recorded like any other failure, with its stack attached to the run.
func (p *Pool) execute(ctx context.Context, job *domain.Job) (result any, jobErr *queue.JobError) {
	h, ok := p.registry.Resolve(job.Type)
	if !ok {
		return nil, &queue.JobError{Message: fmt.Sprintf("No handler registered for job type %s", job.Type)}
	}

	defer func() {
		if r := recover(); r != nil {
			jobErr = &queue.JobError{
				Message: fmt.Sprintf("panic: %v", r),
				Stack:   string(debug.Stack()),
			}
		}
	}()

	res, err := h(ctx, job.Payload)
	if err != nil {
		return nil, &queue.JobError{Message: err.Error()}
	}
	return res, nil
}
