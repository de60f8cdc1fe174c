// Package app wires the engine's components for the api and worker binaries.
package app

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"catalog-backend/internal/cache"
	"catalog-backend/internal/config"
	"catalog-backend/internal/observability"
	"catalog-backend/internal/queue"
)

// NewLogger builds the process logger for the configured environment
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// Backends holds the constructed infrastructure shared by both binaries
type Backends struct {
	Store   *cache.TreeStore
	Queue   queue.DelayedQueue
	Locker  queue.Locker
	Metrics *observability.Collector

	redisClient *redis.Client
}

// NewBackends builds the key-value store (behind a circuit breaker), the
// delayed flush lane, the debounce lock and the metrics collector according
// to the configured backend.
func NewBackends(cfg *config.Config, logger *zap.Logger) (*Backends, error) {
	metrics := observability.NewCollector(
		cfg.Metrics.Namespace,
		cfg.Metrics.SeriesThreshold,
		cfg.Metrics.AuditSampleRate,
		logger,
	)

	keys := cache.NewKeys(cfg.Cache.KeyPrefix)

	backends := &Backends{Metrics: metrics}

	var backend cache.Store
	switch cfg.Backend {
	case "memory":
		backend = cache.NewMemoryStore(cfg.Cache.MaxItems, cfg.Cache.MaxMemory, logger)
		backends.Queue = queue.NewMemoryQueue()
		backends.Locker = queue.NewMemoryLocker()
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		backends.redisClient = client
		backend = cache.NewRedisStore(client, cfg.Cache.KeyPrefix, logger)
		backends.Queue = queue.NewRedisQueue(client, cfg.Flush.Lane, logger)
		backends.Locker = queue.NewRedisLocker(client)
	}

	breaker := cache.NewBreakerStore(backend, cache.DefaultBreakerConfig("tree-cache"), logger)

	store, err := cache.NewTreeStore(breaker, keys, logger)
	if err != nil {
		return nil, err
	}
	backends.Store = store

	return backends, nil
}

// Close releases the backend connections
func (b *Backends) Close() error {
	if b.redisClient != nil {
		return b.redisClient.Close()
	}
	return nil
}
