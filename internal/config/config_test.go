package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"HOST", "PORT", "LOG_LEVEL", "RESPONSE_DELAY", "FILL_DELAY",
	"MARKET_DATA_INTERVAL", "ENABLE_MARKET_DATA", "SEED", "NUM_ACCOUNTS",
	"NUM_CONTRACTS", "DATABASE_URL", "REDIS_URL", "REDIS_CHANNEL_PREFIX",
	"PYROSCOPE_SERVER", "PYROSCOPE_APP_NAME", "AUTH_MODE", "TOKEN_EXPIRY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, time.Duration(0), cfg.HTTP.ResponseDelay)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 100*time.Millisecond, cfg.Trading.FillDelay)
	assert.True(t, cfg.MarketData.Enabled)
	assert.Equal(t, time.Second, cfg.MarketData.Interval)
	assert.Equal(t, uint64(42), cfg.MockData.Seed)
	assert.Equal(t, 15, cfg.MockData.NumAccounts)
	assert.Equal(t, 30, cfg.MockData.NumContracts)
	assert.Empty(t, cfg.Postgres.URL)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, "gateway", cfg.Redis.ChannelPrefix)
	assert.Empty(t, cfg.Profiling.ServerAddress)
	assert.Equal(t, "relaxed", cfg.Auth.Mode)
	assert.Equal(t, time.Hour, cfg.Auth.TokenExpiry)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FILL_DELAY", "250ms")
	t.Setenv("RESPONSE_DELAY", "20")
	t.Setenv("ENABLE_MARKET_DATA", "false")
	t.Setenv("MARKET_DATA_INTERVAL", "2s")
	t.Setenv("SEED", "7")
	t.Setenv("NUM_ACCOUNTS", "3")
	t.Setenv("DATABASE_URL", "postgres://sim@localhost/sim")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_CHANNEL_PREFIX", "sim")
	t.Setenv("AUTH_MODE", "Strict")
	t.Setenv("TOKEN_EXPIRY", "900")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.Trading.FillDelay)
	assert.Equal(t, 20*time.Millisecond, cfg.HTTP.ResponseDelay)
	assert.False(t, cfg.MarketData.Enabled)
	assert.Equal(t, 2*time.Second, cfg.MarketData.Interval)
	assert.Equal(t, uint64(7), cfg.MockData.Seed)
	assert.Equal(t, 3, cfg.MockData.NumAccounts)
	assert.Equal(t, "postgres://sim@localhost/sim", cfg.Postgres.URL)
	assert.Equal(t, "sim", cfg.Redis.ChannelPrefix)
	assert.Equal(t, "strict", cfg.Auth.Mode)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenExpiry)
}

func TestLoad_TokenExpiryDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOKEN_EXPIRY", "90m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenExpiry)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "http"},
		{"PORT", "70000"},
		{"LOG_LEVEL", "loud"},
		{"FILL_DELAY", "soon"},
		{"FILL_DELAY", "0"},
		{"ENABLE_MARKET_DATA", "maybe"},
		{"NUM_ACCOUNTS", "0"},
		{"RESPONSE_DELAY", "-5"},
		{"AUTH_MODE", "open"},
		{"TOKEN_EXPIRY", "never"},
		{"TOKEN_EXPIRY", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
