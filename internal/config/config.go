// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything cmd/server needs to start.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// RemoteBaseURL is the base URL of the remote list service. Identity is
	// always resolved there; records are too in remote store mode.
	RemoteBaseURL string `env:"REMOTE_BASE_URL"`

	// StoreMode selects the record store backend: "remote" (list service)
	// or "local" (sqlite).
	StoreMode string `env:"STORE_MODE" envDefault:"local"`

	// DBPath is the sqlite database path for local store mode.
	DBPath string `env:"DB_PATH" envDefault:"./data/records.db"`

	// JWTSecret signs the browser-hop session tokens.
	JWTSecret string `env:"JWT_SECRET"`

	// TokenTTL is how long session tokens stay valid.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// NavRoot is the fallback navigation target for cancel.
	NavRoot string `env:"NAV_ROOT" envDefault:"/forms"`

	// AllowPrint enables the print action. Static policy, default on.
	AllowPrint bool `env:"ALLOW_PRINT" envDefault:"true"`

	// AdminGroups are group titles granted delete on any record.
	AdminGroups []string `env:"ADMIN_GROUPS" envSeparator:"," envDefault:"Admins"`

	// EditorGroups are group titles granted save on records they did not author.
	EditorGroups []string `env:"EDITOR_GROUPS" envSeparator:","`
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RemoteBaseURL == "" {
		return nil, fmt.Errorf("REMOTE_BASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.StoreMode != "local" && cfg.StoreMode != "remote" {
		return nil, fmt.Errorf("STORE_MODE must be local or remote, got %q", cfg.StoreMode)
	}

	return cfg, nil
}
