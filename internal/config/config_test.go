package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"REQLOG_DB", "REQLOG_LOG_LEVEL"} {
		// Setenv restores the original value on cleanup.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DB != "reqlog.db" {
		t.Fatalf("expected default db reqlog.db, got %q", cfg.DB)
	}
	level, err := cfg.Level()
	if err != nil || level != slog.LevelInfo {
		t.Fatalf("expected info level, got %v (%v)", level, err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REQLOG_DB", "/tmp/other.db")
	t.Setenv("REQLOG_PRIVATE_KEY", "0xabc")
	t.Setenv("REQLOG_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DB != "/tmp/other.db" || cfg.PrivateKey != "0xabc" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if level, _ := cfg.Level(); level != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", level)
	}
}

func TestLoadInvalidLevel(t *testing.T) {
	t.Setenv("REQLOG_LOG_LEVEL", "loud")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "REQLOG_LOG_LEVEL") {
		t.Fatalf("expected variable name in error, got %v", err)
	}
}

type envTestConfig struct {
	Port int `env:"REQLOG_TEST_PORT" envDefault:"123"`
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("REQLOG_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
