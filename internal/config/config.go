// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// IdentitySalt is the secret salt for identity hashing. Required, and
	// must stay stable across deployments — rotating it resets every
	// submitter's one-per-identity admission.
	IdentitySalt string

	// TargetDate is the officially announced date the crowd predicts
	// against, "2006-01-02" format. Required. It anchors weighting, status
	// classification, and the empty-ledger median.
	TargetDate time.Time

	// MinSampleSize is the observation count below which the status endpoint
	// reports insufficient data. Defaults to 50.
	MinSampleSize int

	// AggregateTTL bounds how long a cached aggregate may be served without
	// a ledger rescan. Defaults to 5m. Writers invalidate eagerly, so this
	// only governs read-refresh economics, never post-write staleness.
	AggregateTTL time.Duration

	// ChallengeURL and ChallengeSecret configure the bot-challenge
	// siteverify endpoint. When ChallengeURL is empty every submission is
	// admitted unverified (development mode).
	ChallengeURL    string
	ChallengeSecret string

	// ChallengeTimeout bounds the verification round trip. Defaults to 3s.
	// On expiry admission fails open.
	ChallengeTimeout time.Duration
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		ChallengeURL:     os.Getenv("CHALLENGE_URL"),
		ChallengeSecret:  os.Getenv("CHALLENGE_SECRET"),
		MinSampleSize:    50,
		AggregateTTL:     5 * time.Minute,
		ChallengeTimeout: 3 * time.Second,
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.IdentitySalt = os.Getenv("IDENTITY_SALT")
	if cfg.IdentitySalt == "" {
		missing = append(missing, "IDENTITY_SALT")
	}

	rawTarget := os.Getenv("TARGET_DATE")
	if rawTarget == "" {
		missing = append(missing, "TARGET_DATE")
	} else {
		target, err := time.Parse("2006-01-02", rawTarget)
		if err != nil {
			return Config{}, fmt.Errorf("TARGET_DATE must be YYYY-MM-DD: %w", err)
		}
		cfg.TargetDate = target
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	if v := os.Getenv("MIN_SAMPLE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("MIN_SAMPLE_SIZE must be a positive integer, got %q", v)
		}
		cfg.MinSampleSize = n
	}

	if v := os.Getenv("AGGREGATE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("AGGREGATE_TTL must be a positive duration, got %q", v)
		}
		cfg.AggregateTTL = d
	}

	if v := os.Getenv("CHALLENGE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("CHALLENGE_TIMEOUT must be a positive duration, got %q", v)
		}
		cfg.ChallengeTimeout = d
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
