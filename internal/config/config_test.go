package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(zerolog.Nop(), "no-such-config")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.WebSocket.AllowedOrigins)
	assert.EqualValues(t, 4096, cfg.WebSocket.MaxMessageSize)
	assert.Equal(t, 5, cfg.WebSocket.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.WebSocket.RateLimit.RefillInterval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("MESSENGER_SERVER_ADDR", ":9999")
	t.Setenv("MESSENGER_AUTH_JWTSECRET", "from-env")
	t.Setenv("MESSENGER_LOG_LEVEL", "debug")

	cfg, err := Load(zerolog.Nop(), "no-such-config")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestSanitizeClampsInvalidValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.ShutdownTimeout = -time.Second
	cfg.Auth.TokenTTL = 0
	cfg.WebSocket.MaxMessageSize = -1
	cfg.WebSocket.RateLimit.Burst = 0
	cfg.WebSocket.RateLimit.RefillInterval = -time.Millisecond

	sanitize(cfg)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.EqualValues(t, 4096, cfg.WebSocket.MaxMessageSize)
	assert.Equal(t, 5, cfg.WebSocket.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.WebSocket.RateLimit.RefillInterval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestSanitizePreservesValidValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Addr = ":7000"
	cfg.Server.ShutdownTimeout = 30 * time.Second
	cfg.Auth.TokenTTL = time.Hour
	cfg.WebSocket.MaxMessageSize = 1024
	cfg.WebSocket.RateLimit.Burst = 20
	cfg.WebSocket.RateLimit.RefillInterval = 100 * time.Millisecond
	cfg.Log.Level = "warn"

	sanitize(cfg)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.EqualValues(t, 1024, cfg.WebSocket.MaxMessageSize)
	assert.Equal(t, 20, cfg.WebSocket.RateLimit.Burst)
	assert.Equal(t, 100*time.Millisecond, cfg.WebSocket.RateLimit.RefillInterval)
	assert.Equal(t, "warn", cfg.Log.Level)
}
