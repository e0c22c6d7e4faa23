// Package config loads reqlog settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds process-wide settings. Command-line flags override these
// values.
type Config struct {
	// DB is the path of the SQLite action log.
	DB string `env:"REQLOG_DB" envDefault:"reqlog.db"`

	// PrivateKey is the hex secp256k1 key used to sign actions.
	PrivateKey string `env:"REQLOG_PRIVATE_KEY"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"REQLOG_LOG_LEVEL" envDefault:"info"`
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Level converts LogLevel to a slog level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("REQLOG_LOG_LEVEL: %w", err)
	}
	return level, nil
}
