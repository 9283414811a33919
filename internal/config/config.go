// Package config loads crudst settings from an optional .env file and the
// environment. Command-line flags take precedence over these values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	envDatabaseURL = "CRUDST_DATABASE_URL"
	envWorkers     = "CRUDST_WORKERS"
	envFormat      = "CRUDST_FORMAT"
	envVerbose     = "CRUDST_VERBOSE"
)

// Config holds the environment defaults for the CLI
type Config struct {
	DatabaseURL string
	Workers     int
	Format      string
	Verbose     bool
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (silently ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv(envDatabaseURL),
		Workers:     1,
		Format:      "text",
	}

	if v := os.Getenv(envWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: %q (must be a positive integer)", envWorkers, v)
		}
		cfg.Workers = n
	}

	if v := os.Getenv(envFormat); v != "" {
		cfg.Format = v
	}

	if v := os.Getenv(envVerbose); v != "" {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envVerbose, err)
		}
		cfg.Verbose = verbose
	}

	return cfg, nil
}
