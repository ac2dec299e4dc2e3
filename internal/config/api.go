// Package config loads and validates configuration for the jobq binaries.
// Defaults are set here before env.Load so unset variables fall through to
// sensible values.
package config

import (
	"fmt"

	"github.com/rezkam/jobq/internal/env"
)

// APIConfig holds all configuration for the api binary.
type APIConfig struct {
	Database      DatabaseConfig
	Observability ObservabilityConfig

	Env  string `env:"APP_ENV"` // development, test, production
	Port int    `env:"PORT"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"OTEL_ENABLED"`
	ServiceName string `env:"OTEL_SERVICE_NAME"`
}

// LoadAPIConfig loads and validates api configuration from environment.
func LoadAPIConfig() (*APIConfig, error) {
	cfg := &APIConfig{
		Env:  "development",
		Port: 3001,
	}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load api config: %w", err)
	}

	return cfg, nil
}

// Validate checks api configuration ranges.
func (c *APIConfig) Validate() error {
	switch c.Env {
	case "development", "test", "production":
	default:
		return fmt.Errorf("APP_ENV must be one of development, test, production, got %q", c.Env)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be in [1, 65535], got %d", c.Port)
	}
	return nil
}
