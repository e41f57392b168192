package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/punchamoorthee/lendingledger/internal/store"
)

type Config struct {
	DBSource      string
	DBDriver      string
	DBMaxConns    int
	Port          string
	Env           string
	LogLevel      slog.Level
	SweepInterval time.Duration
}

// Load reads the environment, after an optional .env file, and validates the result.
func Load() (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the environment without checking required values, so command-line
// flags can fill them in before Validate.
func FromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		DBSource: os.Getenv("DB_SOURCE"),
		DBDriver: getenv("DB_DRIVER", store.DriverPGX),
		Port:     getenv("SERVER_PORT", "8080"),
		Env:      getenv("ENVIRONMENT", "development"),
	}

	maxConns, err := strconv.Atoi(getenv("DB_MAX_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	cfg.DBMaxConns = maxConns

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	interval, err := time.ParseDuration(getenv("OVERDUE_SWEEP_INTERVAL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid OVERDUE_SWEEP_INTERVAL: %w", err)
	}
	cfg.SweepInterval = interval

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBSource == "" {
		return fmt.Errorf("DB_SOURCE environment variable is required")
	}
	switch c.DBDriver {
	case store.DriverPGX, store.DriverPQ, store.DriverMySQL, store.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return fmt.Errorf("invalid SERVER_PORT %q", c.Port)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("OVERDUE_SWEEP_INTERVAL must not be negative")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
