package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rezkam/jobq/internal/application/worker"
	"github.com/rezkam/jobq/internal/config"
	"github.com/rezkam/jobq/internal/infrastructure/persistence/postgres"
	"github.com/rezkam/jobq/pkg/observability"
)

const serviceName = "jobq-worker"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	obs, err := observability.Setup(ctx, obsServiceName(cfg.Observability), cfg.Observability.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init observability: %w", err)
	}
	defer func() {
		// Fresh timeout so an unreachable collector cannot hang shutdown.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown observability", "error", err)
		}
	}()
	slog.SetDefault(obs.Logger)

	store, err := postgres.Connect(ctx, postgres.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Database.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	slog.InfoContext(ctx, "storage initialized", "url", maskPassword(cfg.Database.URL))

	registry := worker.NewRegistry()
	if err := registry.Register("ping", worker.NewPingHandler()); err != nil {
		return fmt.Errorf("failed to register ping handler: %w", err)
	}
	if err := registry.Register("location.upsert", worker.NewLocationUpsertHandler(store)); err != nil {
		return fmt.Errorf("failed to register location.upsert handler: %w", err)
	}

	pool := worker.New(store, registry, worker.Config{
		WorkerID:      cfg.WorkerID,
		Concurrency:   cfg.Concurrency,
		PollInterval:  time.Duration(cfg.PollMS) * time.Millisecond,
		LeaseDuration: time.Duration(cfg.LeaseSeconds) * time.Second,
	})

	slog.InfoContext(ctx, "starting jobq worker",
		"worker_id", pool.WorkerID(),
		"concurrency", cfg.Concurrency,
		"poll_ms", cfg.PollMS,
		"lease_seconds", cfg.LeaseSeconds,
		"job_types", registry.Types())

	if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker stopped: %w", err)
	}

	slog.Info("worker shut down gracefully")
	return nil
}

func obsServiceName(cfg config.ObservabilityConfig) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	return serviceName
}

// maskPassword masks the password in a connection string for logging.
func maskPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
