// Package config loads the gateway configuration from environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHost               = "0.0.0.0"
	defaultPort               = 8080
	defaultLogLevel           = "info"
	defaultFillDelay          = 100 * time.Millisecond
	defaultMarketDataInterval = time.Second
	defaultSeed               = 42
	defaultNumAccounts        = 15
	defaultNumContracts       = 30
	defaultRedisPrefix        = "gateway"
	defaultAppName            = "gateway-sim"
	defaultAuthMode           = "relaxed"
	defaultTokenExpiry        = time.Hour
)

// Config keeps the runtime configuration for the service.
type Config struct {
	HTTP       HTTPConfig
	LogLevel   slog.Level
	Trading    TradingConfig
	MarketData MarketDataConfig
	MockData   MockDataConfig
	Auth       AuthConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Profiling  ProfilingConfig
}

// HTTPConfig holds HTTP server related settings.
type HTTPConfig struct {
	Host string
	Port int
	// ResponseDelay is added before every API response.
	ResponseDelay time.Duration
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// TradingConfig tunes the order engine.
type TradingConfig struct {
	FillDelay time.Duration
}

// MarketDataConfig tunes the market data synthesizer.
type MarketDataConfig struct {
	Enabled  bool
	Interval time.Duration
}

// MockDataConfig sizes the seeded reference data.
type MockDataConfig struct {
	Seed         uint64
	NumAccounts  int
	NumContracts int
}

// AuthConfig controls session issuance.
type AuthConfig struct {
	// Mode is disabled, relaxed or strict.
	Mode        string
	TokenExpiry time.Duration
}

// PostgresConfig enables the fill journal when URL is set.
type PostgresConfig struct {
	URL string
}

// RedisConfig enables the hub event mirror when URL is set.
type RedisConfig struct {
	URL           string
	ChannelPrefix string
}

// ProfilingConfig enables continuous profiling when ServerAddress is set.
type ProfilingConfig struct {
	ServerAddress   string
	ApplicationName string
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	port, err := getInt("PORT", defaultPort)
	if err != nil {
		return nil, fmt.Errorf("parse PORT: %w", err)
	}
	level, err := getLevel("LOG_LEVEL", defaultLogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	responseDelay, err := getDuration("RESPONSE_DELAY", 0)
	if err != nil {
		return nil, fmt.Errorf("parse RESPONSE_DELAY: %w", err)
	}
	fillDelay, err := getDuration("FILL_DELAY", defaultFillDelay)
	if err != nil {
		return nil, fmt.Errorf("parse FILL_DELAY: %w", err)
	}
	interval, err := getDuration("MARKET_DATA_INTERVAL", defaultMarketDataInterval)
	if err != nil {
		return nil, fmt.Errorf("parse MARKET_DATA_INTERVAL: %w", err)
	}
	enabled, err := getBool("ENABLE_MARKET_DATA", true)
	if err != nil {
		return nil, fmt.Errorf("parse ENABLE_MARKET_DATA: %w", err)
	}
	seed, err := getInt("SEED", defaultSeed)
	if err != nil {
		return nil, fmt.Errorf("parse SEED: %w", err)
	}
	accounts, err := getInt("NUM_ACCOUNTS", defaultNumAccounts)
	if err != nil {
		return nil, fmt.Errorf("parse NUM_ACCOUNTS: %w", err)
	}
	contracts, err := getInt("NUM_CONTRACTS", defaultNumContracts)
	if err != nil {
		return nil, fmt.Errorf("parse NUM_CONTRACTS: %w", err)
	}
	tokenExpiry, err := getSeconds("TOKEN_EXPIRY", defaultTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("parse TOKEN_EXPIRY: %w", err)
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Host:          getString("HOST", defaultHost),
			Port:          port,
			ResponseDelay: responseDelay,
		},
		LogLevel:   level,
		Trading:    TradingConfig{FillDelay: fillDelay},
		MarketData: MarketDataConfig{Enabled: enabled, Interval: interval},
		MockData: MockDataConfig{
			Seed:         uint64(seed),
			NumAccounts:  accounts,
			NumContracts: contracts,
		},
		Auth: AuthConfig{
			Mode:        strings.ToLower(getString("AUTH_MODE", defaultAuthMode)),
			TokenExpiry: tokenExpiry,
		},
		Postgres: PostgresConfig{URL: os.Getenv("DATABASE_URL")},
		Redis: RedisConfig{
			URL:           os.Getenv("REDIS_URL"),
			ChannelPrefix: getString("REDIS_CHANNEL_PREFIX", defaultRedisPrefix),
		},
		Profiling: ProfilingConfig{
			ServerAddress:   os.Getenv("PYROSCOPE_SERVER"),
			ApplicationName: getString("PYROSCOPE_APP_NAME", defaultAppName),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.HTTP.Port <= 0 || c.HTTP.Port > 65535:
		return fmt.Errorf("PORT %d out of range", c.HTTP.Port)
	case c.Trading.FillDelay <= 0:
		return fmt.Errorf("FILL_DELAY must be positive, got %s", c.Trading.FillDelay)
	case c.MarketData.Interval <= 0:
		return fmt.Errorf("MARKET_DATA_INTERVAL must be positive, got %s", c.MarketData.Interval)
	case c.HTTP.ResponseDelay < 0:
		return fmt.Errorf("RESPONSE_DELAY must not be negative, got %s", c.HTTP.ResponseDelay)
	case c.MockData.NumAccounts <= 0:
		return fmt.Errorf("NUM_ACCOUNTS must be positive, got %d", c.MockData.NumAccounts)
	case c.MockData.NumContracts < 0:
		return fmt.Errorf("NUM_CONTRACTS must not be negative, got %d", c.MockData.NumContracts)
	case c.Auth.Mode != "disabled" && c.Auth.Mode != "relaxed" && c.Auth.Mode != "strict":
		return fmt.Errorf("AUTH_MODE must be disabled, relaxed or strict, got %q", c.Auth.Mode)
	case c.Auth.TokenExpiry <= 0:
		return fmt.Errorf("TOKEN_EXPIRY must be positive, got %s", c.Auth.TokenExpiry)
	}
	return nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("convert %s value %q to bool: %w", key, value, err)
	}
	return parsed, nil
}

// getDuration accepts Go duration strings ("250ms") or a bare integer
// number of milliseconds.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to duration: %w", key, value, err)
	}
	return parsed, nil
}

// getSeconds is getDuration with a bare integer read as seconds.
func getSeconds(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	if sec, err := strconv.Atoi(value); err == nil {
		return time.Duration(sec) * time.Second, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to duration: %w", key, value, err)
	}
	return parsed, nil
}

func getLevel(key, fallback string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(getString(key, fallback)))); err != nil {
		return 0, fmt.Errorf("convert %s: %w", key, err)
	}
	return level, nil
}
