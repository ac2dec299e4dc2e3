package config

import (
	"fmt"

	"github.com/rezkam/jobq/internal/env"
)

// WorkerConfig holds all configuration for the worker binary.
type WorkerConfig struct {
	Database      DatabaseConfig
	Observability ObservabilityConfig

	// WorkerID identifies this worker in job leases; empty means
	// hostname-pid is derived at startup.
	WorkerID     string `env:"WORKER_ID"`
	Concurrency  int    `env:"WORKER_CONCURRENCY"`
	PollMS       int    `env:"POLL_MS"`
	LeaseSeconds int    `env:"LEASE_SECONDS"`
}

// LoadWorkerConfig loads and validates worker configuration from environment.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{
		Concurrency:  2,
		PollMS:       1000,
		LeaseSeconds: 120,
	}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load worker config: %w", err)
	}

	return cfg, nil
}

// Validate checks worker configuration ranges.
func (c *WorkerConfig) Validate() error {
	if c.Concurrency < 1 || c.Concurrency > 32 {
		return fmt.Errorf("WORKER_CONCURRENCY must be in [1, 32], got %d", c.Concurrency)
	}
	if c.PollMS < 100 || c.PollMS > 60000 {
		return fmt.Errorf("POLL_MS must be in [100, 60000], got %d", c.PollMS)
	}
	if c.LeaseSeconds < 10 || c.LeaseSeconds > 3600 {
		return fmt.Errorf("LEASE_SECONDS must be in [10, 3600], got %d", c.LeaseSeconds)
	}
	return nil
}
