package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "catalog:", cfg.Cache.KeyPrefix)
	assert.Equal(t, 10*time.Minute, cfg.Cache.EntryTTL)
	assert.Equal(t, 2*time.Second, cfg.Flush.LockTTL)
	assert.Equal(t, 5*time.Second, cfg.Flush.Delay)
	assert.Equal(t, "cache-flush-low", cfg.Flush.Lane)
	assert.Equal(t, 3, cfg.Flush.MaxAttempts)
	assert.Equal(t, "catalog_cache", cfg.Metrics.Namespace)
	assert.Equal(t, 64, cfg.Metrics.SeriesThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("CACHE_KEY_PREFIX", "shop:")
	t.Setenv("FLUSH_DELAY", "30s")
	t.Setenv("METRICS_SERIES_THRESHOLD", "128")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "shop:", cfg.Cache.KeyPrefix)
	assert.Equal(t, 30*time.Second, cfg.Flush.Delay)
	assert.Equal(t, 128, cfg.Metrics.SeriesThreshold)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
backend: memory
flush:
  lane: cache-flush-high
`), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "cache-flush-high", cfg.Flush.Lane)
	// Untouched values keep their env defaults.
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_RejectsMissingOverlayFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("FLUSH_LOCK_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Flush.LockTTL)
}
