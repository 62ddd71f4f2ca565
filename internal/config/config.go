package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AllowedIntervals is the enumerated set of monitoring intervals (minutes)
// an operator may choose from.
var AllowedIntervals = []int{15, 30, 60, 120}

// Config holds the application's configuration values. Values come from an
// optional YAML file, with environment variables taking precedence.
type Config struct {
	DatabaseDriver string `yaml:"database_driver"` // "sqlite", "redis" or "memory"
	DatabaseURL    string `yaml:"database_url"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	AuthorityBaseURL string `yaml:"authority_base_url"`

	DefaultIntervalMinutes int           `yaml:"default_interval_minutes"`
	ProbeTimeout           time.Duration `yaml:"probe_timeout"`
	MaxConcurrentProbes    int           `yaml:"max_concurrent_probes"`
	ConnectivityTarget     string        `yaml:"connectivity_target"`

	HTTPPort      string        `yaml:"http_port"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		DatabaseDriver:         "sqlite",
		DatabaseURL:            "upwatch.db",
		RedisAddr:              "localhost:6379",
		AuthorityBaseURL:       "https://api.upwatch.example",
		DefaultIntervalMinutes: 15,
		ProbeTimeout:           10 * time.Second,
		MaxConcurrentProbes:    50,
		ConnectivityTarget:     "1.1.1.1:53",
		HTTPPort:               "8080",
		ShutdownGrace:          10 * time.Second,
	}
}

// Load reads configuration from the YAML file at path (if any), then applies
// environment variable overrides. A missing file falls back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(content, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.DatabaseDriver = getEnv("UPWATCH_DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseURL = getEnv("UPWATCH_DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisAddr = getEnv("UPWATCH_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("UPWATCH_REDIS_PASS", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("UPWATCH_REDIS_DB", cfg.RedisDB)
	cfg.AuthorityBaseURL = getEnv("UPWATCH_AUTHORITY_URL", cfg.AuthorityBaseURL)
	cfg.DefaultIntervalMinutes = getEnvInt("UPWATCH_INTERVAL_MINUTES", cfg.DefaultIntervalMinutes)
	cfg.ProbeTimeout = getEnvDuration("UPWATCH_PROBE_TIMEOUT", cfg.ProbeTimeout)
	cfg.MaxConcurrentProbes = getEnvInt("UPWATCH_MAX_CONCURRENT_PROBES", cfg.MaxConcurrentProbes)
	cfg.ConnectivityTarget = getEnv("UPWATCH_CONNECTIVITY_TARGET", cfg.ConnectivityTarget)
	cfg.HTTPPort = getEnv("UPWATCH_HTTP_PORT", cfg.HTTPPort)
	cfg.ShutdownGrace = getEnvDuration("UPWATCH_SHUTDOWN_GRACE", cfg.ShutdownGrace)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.DatabaseDriver)
	}
	if !IntervalAllowed(c.DefaultIntervalMinutes) {
		return fmt.Errorf("interval %d minutes is not one of %v", c.DefaultIntervalMinutes, AllowedIntervals)
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("probe timeout must be positive")
	}
	if c.MaxConcurrentProbes <= 0 {
		return errors.New("max concurrent probes must be positive")
	}
	return nil
}

// IntervalAllowed reports whether minutes is a member of AllowedIntervals.
func IntervalAllowed(minutes int) bool {
	for _, m := range AllowedIntervals {
		if m == minutes {
			return true
		}
	}
	return false
}

// Helper function to get an environment variable or return a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// Helper function to get an environment variable as an integer.
func getEnvInt(key string, fallback int) int {
	if valueStr, exists := os.LookupEnv(key); exists && valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

// Helper function to get an environment variable as a time.Duration.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists && valueStr != "" {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return fallback
}
