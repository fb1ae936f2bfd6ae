package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	Port        string
	Env         string
	StoreDriver string
	DBSource    string

	LockWait    time.Duration
	LockRetries int
	BulkWorkers int
}

// Load reads configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        valueOrDefault("SERVER_PORT", "8080"),
		Env:         valueOrDefault("ENVIRONMENT", "development"),
		StoreDriver: valueOrDefault("STORE_DRIVER", DriverMemory),
		DBSource:    os.Getenv("DB_SOURCE"),
		LockWait:    2 * time.Second,
		LockRetries: 2,
		BulkWorkers: 4,
	}

	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.DBSource == "" {
			return nil, fmt.Errorf("DB_SOURCE environment variable is required for the postgres store")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if v := os.Getenv("LOCK_WAIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LOCK_WAIT: %w", err)
		}
		cfg.LockWait = d
	}
	if v := os.Getenv("LOCK_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid LOCK_RETRIES %q", v)
		}
		cfg.LockRetries = n
	}
	if v := os.Getenv("BULK_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid BULK_WORKERS %q", v)
		}
		cfg.BulkWorkers = n
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
