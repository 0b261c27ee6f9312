package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stevemurr/vacancy-store/config"
)

var keys = []string{"DATA_DIR", "STORE_BACKEND", "STORE_DSN", "HOST", "PORT", "ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_PRETTY"}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "./data" || cfg.Backend != "json" || cfg.Port != 8080 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LogLevel != zerolog.InfoLevel || cfg.LogPretty {
		t.Fatalf("unexpected log defaults: %+v", cfg)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
}

func TestEnvFileAndOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "DATA_DIR=/from/file\nPORT=9090\nLOG_LEVEL=debug\nALLOWED_ORIGINS=http://a,http://b\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATA_DIR", "/from/env")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/from/env" {
		t.Fatalf("environment must win over .env, got %q", cfg.DataDir)
	}
	if cfg.Port != 9090 || cfg.LogLevel != zerolog.DebugLevel {
		t.Fatalf("expected values from .env, got %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.AllowedOrigins)
	}
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"port not a number", "PORT", "http"},
		{"port out of range", "PORT", "70000"},
		{"unknown log level", "LOG_LEVEL", "loud"},
		{"pretty not bool", "LOG_PRETTY", "sometimes"},
		{"postgres without dsn", "STORE_BACKEND", "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := config.Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
