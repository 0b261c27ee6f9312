// Package config loads runtime configuration from the environment, after
// reading a .env file when one is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all runtime configuration.
type Config struct {
	DataDir        string
	Backend        string // json, sqlite, postgres, redis or memory
	DSN            string // connection string for postgres and redis
	Host           string
	Port           int
	AllowedOrigins []string
	LogLevel       zerolog.Level
	LogPretty      bool
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads envFile (ignored if missing) and then the environment. Values
// already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	port, err := strconv.Atoi(env("PORT", "8080"))
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("PORT must be a port number, got %q", os.Getenv("PORT"))
	}

	level, err := zerolog.ParseLevel(strings.ToLower(env("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	pretty := false
	if s := os.Getenv("LOG_PRETTY"); s != "" {
		if pretty, err = strconv.ParseBool(s); err != nil {
			return nil, fmt.Errorf("LOG_PRETTY must be a boolean, got %q", s)
		}
	}

	cfg := &Config{
		DataDir:        env("DATA_DIR", "./data"),
		Backend:        env("STORE_BACKEND", "json"),
		DSN:            os.Getenv("STORE_DSN"),
		Host:           env("HOST", "0.0.0.0"),
		Port:           port,
		AllowedOrigins: strings.Split(env("ALLOWED_ORIGINS", "*"), ","),
		LogLevel:       level,
		LogPretty:      pretty,
	}
	if (cfg.Backend == "postgres" || cfg.Backend == "redis") && cfg.DSN == "" {
		return nil, fmt.Errorf("STORE_DSN is required for the %s backend", cfg.Backend)
	}
	return cfg, nil
}
