package di

import (
	"os"
	"strconv"
	"time"

	"crypto_backend/internal/platform/scheduler"
)

// RefreshGranularity returns a function that reads the refresh interval from
// REFRESH_GRANULARITY on every call, so that the running loop can pick up
// configuration changes without a restart.
func RefreshGranularity() func() time.Duration {
	return func() time.Duration {
		raw := os.Getenv("REFRESH_GRANULARITY")
		if raw == "" {
			return scheduler.DefaultGranularity
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return scheduler.DefaultGranularity
		}
		return d
	}
}

// EnvInt reads an integer environment variable, falling back on absence or
// parse failure.
func EnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// EnvDuration reads a duration environment variable, falling back on absence
// or parse failure.
func EnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
