// Package config provides configuration for the cache engine processes.
// Values come from environment variables with sensible defaults, optionally
// overlaid from a YAML file named by CONFIG_FILE.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for the api and worker processes
type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	LogLevel    string `yaml:"log_level"`
	ListenAddr  string `yaml:"listen_addr" validate:"required"`

	// Backend selects the key-value backend: "redis" (tag-grouped) or
	// "memory" (pattern-clear, single instance only).
	Backend string `yaml:"backend" validate:"oneof=redis memory"`

	RedisAddr     string `yaml:"redis_addr" validate:"required"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" validate:"gte=0"`

	Cache   CacheConfig   `yaml:"cache"`
	Flush   FlushConfig   `yaml:"flush"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// CacheConfig controls the tree cache store
type CacheConfig struct {
	KeyPrefix string        `yaml:"key_prefix" validate:"required"`
	EntryTTL  time.Duration `yaml:"entry_ttl" validate:"gt=0"`
	MemoTTL   time.Duration `yaml:"memo_ttl" validate:"gt=0"`

	// Memory store limits, used when no Redis backend is configured.
	MaxItems  int   `yaml:"max_items" validate:"gt=0"`
	MaxMemory int64 `yaml:"max_memory" validate:"gt=0"`
}

// FlushConfig controls debouncing and the background flush worker
type FlushConfig struct {
	LockTTL     time.Duration `yaml:"lock_ttl" validate:"gt=0"`
	Delay       time.Duration `yaml:"delay" validate:"gt=0"`
	Lane        string        `yaml:"lane" validate:"required"`
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=1"`
	PollEvery   time.Duration `yaml:"poll_every" validate:"gt=0"`
}

// MetricsConfig controls the prometheus collector
type MetricsConfig struct {
	Namespace       string  `yaml:"namespace" validate:"required"`
	SeriesThreshold int     `yaml:"series_threshold" validate:"gt=0"`
	AuditSampleRate float64 `yaml:"audit_sample_rate" validate:"gte=0,lte=1"`
}

// Load creates a configuration from environment variables, applies the optional
// YAML overlay, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		Backend:       getEnv("CACHE_BACKEND", "redis"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		Cache: CacheConfig{
			KeyPrefix: getEnv("CACHE_KEY_PREFIX", "catalog:"),
			EntryTTL:  getEnvDuration("CACHE_ENTRY_TTL", 10*time.Minute),
			MemoTTL:   getEnvDuration("CACHE_MEMO_TTL", 30*time.Second),
			MaxItems:  getEnvInt("CACHE_MAX_ITEMS", 10000),
			MaxMemory: int64(getEnvInt("CACHE_MAX_MEMORY", 64<<20)),
		},
		Flush: FlushConfig{
			LockTTL:     getEnvDuration("FLUSH_LOCK_TTL", 2*time.Second),
			Delay:       getEnvDuration("FLUSH_DELAY", 5*time.Second),
			Lane:        getEnv("FLUSH_LANE", "cache-flush-low"),
			MaxAttempts: getEnvInt("FLUSH_MAX_ATTEMPTS", 3),
			PollEvery:   getEnvDuration("FLUSH_POLL_EVERY", time.Second),
		},
		Metrics: MetricsConfig{
			Namespace:       getEnv("METRICS_NAMESPACE", "catalog_cache"),
			SeriesThreshold: getEnvInt("METRICS_SERIES_THRESHOLD", 64),
			AuditSampleRate: getEnvFloat("METRICS_AUDIT_SAMPLE_RATE", 0.01),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config overlay %s: %w", path, err)
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// overlayFile applies values from a YAML file on top of the current config
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
