// Package config loads choremates settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendSupabase = "supabase"
)

// Config holds every runtime setting. Field tags name the environment variable
// without the CHOREMATES_ prefix.
type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	StaticPath string `env:"STATIC_PATH" envDefault:"../frontend"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	Backend            string `env:"BACKEND" envDefault:"sqlite"`
	DBPath             string `env:"DB_PATH" envDefault:"./data/choremates.db"`
	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	SupabaseAnonKey    string `env:"SUPABASE_ANON_KEY"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-in-production"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	PublicURL       string        `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	QRServiceURL    string        `env:"QR_SERVICE_URL" envDefault:"https://api.qrserver.com/v1/create-qr-code/?size=200x200&data="`
	InviteTTL       time.Duration `env:"INVITE_TTL" envDefault:"168h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`

	PartnerRetryDelay time.Duration `env:"PARTNER_RETRY_DELAY" envDefault:"2s"`
	PartnerRetries    uint          `env:"PARTNER_RETRIES" envDefault:"3"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:8080" envSeparator:","`
}

// Load parses the environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: "CHOREMATES_"})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendMemory:
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("backend %q requires SUPABASE_URL and SUPABASE_SERVICE_KEY", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.InviteTTL <= 0 {
		return fmt.Errorf("invite TTL must be positive, got %s", c.InviteTTL)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive, got %s", c.CleanupInterval)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
