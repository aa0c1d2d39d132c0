// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all server settings.
type Config struct {
	ListenAddr  string
	MetricsAddr string

	LogLevel  string
	LogFormat string

	DatabaseURL   string
	MigrationsDir string
	AuthSecret    string

	MaxUploadSize int64
}

// Load reads configuration from the environment. DATABASE_URL and
// AUTH_SECRET are required; everything else has a default.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:    envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:   envOr("METRICS_ADDR", ":9090"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MigrationsDir: envOr("MIGRATIONS_DIR", "migrations"),
		AuthSecret:    os.Getenv("AUTH_SECRET"),
		MaxUploadSize: envInt64("MAX_UPLOAD_SIZE", 100<<20),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AuthSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
