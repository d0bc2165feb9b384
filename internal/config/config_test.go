package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, 7*24*time.Hour, cfg.InviteTTL)
	assert.Equal(t, 2*time.Second, cfg.PartnerRetryDelay)
	assert.Equal(t, uint(3), cfg.PartnerRetries)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestPrefixedOverrides(t *testing.T) {
	cfg, err := parse(env.Options{
		Prefix: "CHOREMATES_",
		Environment: map[string]string{
			"CHOREMATES_BACKEND":         "memory",
			"CHOREMATES_INVITE_TTL":      "48h",
			"CHOREMATES_LOG_LEVEL":       "DEBUG",
			"CHOREMATES_ALLOWED_ORIGINS": "https://a.example,https://b.example",
			"BACKEND":                    "supabase",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, 48*time.Hour, cfg.InviteTTL)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"unknown backend", map[string]string{"BACKEND": "mongo"}, true},
		{"supabase without credentials", map[string]string{"BACKEND": "supabase"}, true},
		{"supabase with credentials", map[string]string{
			"BACKEND":              "supabase",
			"SUPABASE_URL":         "https://x.supabase.co",
			"SUPABASE_SERVICE_KEY": "key",
		}, false},
		{"non-positive invite ttl", map[string]string{"INVITE_TTL": "0s"}, true},
		{"bad duration", map[string]string{"CLEANUP_INTERVAL": "soon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(env.Options{Environment: tt.env})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
