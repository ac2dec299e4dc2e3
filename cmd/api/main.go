package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rezkam/jobq/internal/config"
	jobqhttp "github.com/rezkam/jobq/internal/infrastructure/http"
	"github.com/rezkam/jobq/internal/infrastructure/http/handler"
	"github.com/rezkam/jobq/internal/infrastructure/persistence/postgres"
	"github.com/rezkam/jobq/pkg/observability"
)

const serviceName = "jobq-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadAPIConfig()
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

	slog.InfoContext(ctx, "starting jobq api", "env", cfg.Env, "port", cfg.Port)

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

	jobs := handler.New(store, store, serviceName)
	server := jobqhttp.NewAPIServer(jobs, jobqhttp.ServerConfig{
		Port: strconv.Itoa(cfg.Port),
	})

	errResult := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errResult <- fmt.Errorf("failed to serve http: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")

		// Main ctx is cancelled; drain requests on a fresh timeout.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "http server shutdown timed out", "error", err)
		}
		return nil
	case err := <-errResult:
		return err
	}
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
