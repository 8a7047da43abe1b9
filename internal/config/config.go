// Package config loads the process configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv     string `env:"APP_ENV" default:"development"`
	Port       string `env:"PORT" default:"3001"`
	CORSOrigin string `env:"CORS_ORIGIN" default:"*"`

	// RequireAuth gates new connections on a valid bearer credential.
	// AuthSecret is the HS256 key used to verify them.
	RequireAuth bool   `env:"REQUIRE_AUTH" default:"false"`
	AuthSecret  string `env:"AUTH_SECRET"`

	// Disabled keeps the transport from ever starting. Lifecycle hooks
	// are still wired so toggling it needs no other changes.
	Disabled bool `env:"DISABLED" default:"false"`

	// DatabaseURL selects the Postgres document store. Empty means the
	// in-memory store (development and tests).
	DatabaseURL string `env:"DATABASE_URL"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	MaxClients int `env:"MAX_CLIENTS" default:"10000"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.RequireAuth && cfg.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required when REQUIRE_AUTH is enabled")
	}
	if cfg.MaxClients <= 0 {
		return fmt.Errorf("MAX_CLIENTS must be positive, got %d", cfg.MaxClients)
	}
	return nil
}
