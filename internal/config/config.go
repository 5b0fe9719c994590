// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Storage settings. DatabaseURL is either a SQLite file path (the
	// default) or a postgres:// URL.
	DatabaseURL    string
	QueryTimeout   time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration

	// Catalog and scoring settings. Empty paths fall back to the
	// embedded defaults.
	CatalogPath       string
	ScoringConfigPath string

	// Tracker settings.
	StatsTTL           time.Duration
	DefaultAvgTaskTime time.Duration
	PatternDecay       float64

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	// API settings. An empty APIKey disables authentication, for local
	// single-user use. RateLimitRPS of 0 disables rate limiting.
	APIKey              string
	MaxRequestBodyBytes int64
	RateLimitRPS        float64
	RateLimitBurst      int

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults. Invalid values are collected and reported together so a
// broken environment fails with one complete message.
func Load() (Config, error) {
	var errs []error
	collectInt := func(key string, def int) int {
		v, err := envInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	collectDuration := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	collectBool := func(key string, def bool) bool {
		v, err := envBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	collectFloat := func(key string, def float64) float64 {
		v, err := envFloat(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := Config{
		Port:                collectInt("HIVE_PORT", 8080),
		ReadTimeout:         collectDuration("HIVE_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        collectDuration("HIVE_WRITE_TIMEOUT", 30*time.Second),
		DatabaseURL:         envStr("HIVE_DATABASE_URL", defaultDatabasePath()),
		QueryTimeout:        collectDuration("HIVE_QUERY_TIMEOUT", 5*time.Second),
		RetryAttempts:       collectInt("HIVE_RETRY_ATTEMPTS", 3),
		RetryBaseDelay:      collectDuration("HIVE_RETRY_BASE_DELAY", 50*time.Millisecond),
		CatalogPath:         envStr("HIVE_CATALOG_PATH", ""),
		ScoringConfigPath:   envStr("HIVE_SCORING_CONFIG_PATH", ""),
		StatsTTL:            collectDuration("HIVE_STATS_TTL", time.Minute),
		DefaultAvgTaskTime:  collectDuration("HIVE_DEFAULT_AVG_TASK_TIME", time.Minute),
		PatternDecay:        collectFloat("HIVE_PATTERN_DECAY", 0.95),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "hive"),
		OTELInsecure:        collectBool("HIVE_OTEL_INSECURE", false),
		APIKey:              envStr("HIVE_API_KEY", ""),
		MaxRequestBodyBytes: int64(collectInt("HIVE_MAX_REQUEST_BODY_BYTES", 1*1024*1024)),
		RateLimitRPS:        collectFloat("HIVE_RATE_LIMIT_RPS", 0),
		RateLimitBurst:      collectInt("HIVE_RATE_LIMIT_BURST", 20),
		LogLevel:            envStr("HIVE_LOG_LEVEL", "info"),
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and in range.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: HIVE_PORT must be in 1..65535, got %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: HIVE_DATABASE_URL is required")
	}
	if c.PatternDecay <= 0 || c.PatternDecay >= 1 {
		return fmt.Errorf("config: HIVE_PATTERN_DECAY must be in (0, 1), got %g", c.PatternDecay)
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: HIVE_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("config: HIVE_RETRY_ATTEMPTS must not be negative")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("config: HIVE_RATE_LIMIT_RPS must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("config: HIVE_RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}
	return nil
}

// defaultDatabasePath is ~/.agenthive/executions.db, falling back to a
// relative path when the home directory cannot be resolved.
func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".agenthive", "executions.db")
	}
	return filepath.Join(home, ".agenthive", "executions.db")
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
