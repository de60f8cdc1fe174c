// Package observability holds the prometheus collector for the cache engine.
// The label surface is deliberately tiny: operation, cache_hit and
// status_filter only. Root ids, node ids and anything else unbounded never
// become labels, and the collector periodically audits its own series count
// to enforce that.
package observability

import (
	"math/rand"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector holds all prometheus metrics for the cache engine
type Collector struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	// Read path
	ReadTotal    *prometheus.CounterVec
	ReadDuration *prometheus.HistogramVec

	// Invalidation path
	ShardClears    *prometheus.CounterVec
	FallbackTotal  *prometheus.CounterVec
	DebounceTotal  *prometheus.CounterVec
	FlushJobsTotal *prometheus.CounterVec

	// Self-audit
	seriesThreshold int
	auditSampleRate float64
	auditMu         sync.Mutex
}

// NewCollector creates a metrics collector with its own registry
func NewCollector(namespace string, seriesThreshold int, auditSampleRate float64, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()

	readTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_reads_total",
			Help:      "Total number of cache-through tree reads",
		},
		[]string{"operation", "cache_hit", "status_filter"},
	)

	readDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tree_read_duration_seconds",
			Help:      "Cache-through tree read duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "cache_hit", "status_filter"},
	)

	shardClears := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shard_clears_total",
			Help:      "Total number of shard cache clears",
		},
		[]string{"status"},
	)

	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidation_fallbacks_total",
			Help:      "Total number of invalidations routed to the fallback path",
		},
		[]string{"reason"},
	)

	debounceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_requests_total",
			Help:      "Total number of flush scheduling attempts",
		},
		[]string{"outcome"},
	)

	flushJobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_jobs_total",
			Help:      "Total number of background flush job executions",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		readTotal,
		readDuration,
		shardClears,
		fallbackTotal,
		debounceTotal,
		flushJobsTotal,
	)

	return &Collector{
		registry:        registry,
		logger:          logger,
		ReadTotal:       readTotal,
		ReadDuration:    readDuration,
		ShardClears:     shardClears,
		FallbackTotal:   fallbackTotal,
		DebounceTotal:   debounceTotal,
		FlushJobsTotal:  flushJobsTotal,
		seriesThreshold: seriesThreshold,
		auditSampleRate: auditSampleRate,
	}
}

// RecordRead records one cache-through read. Any metrics backend failure is
// swallowed: instrumentation must never propagate an error to the caller.
func (c *Collector) RecordRead(operation string, cacheHit bool, statusFilter string, seconds float64) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Metrics backend failure swallowed", zap.Any("panic", r))
		}
	}()

	hit := strconv.FormatBool(cacheHit)
	c.ReadTotal.WithLabelValues(operation, hit, statusFilter).Inc()
	c.ReadDuration.WithLabelValues(operation, hit, statusFilter).Observe(seconds)

	c.maybeAuditCardinality()
}

// RecordShardClear records the outcome of one shard clear
func (c *Collector) RecordShardClear(success bool) {
	defer swallow(c.logger)
	status := "success"
	if !success {
		status = "failure"
	}
	c.ShardClears.WithLabelValues(status).Inc()
}

// RecordFallback records one invalidation routed to the fallback path
func (c *Collector) RecordFallback(reason string) {
	defer swallow(c.logger)
	c.FallbackTotal.WithLabelValues(reason).Inc()
}

// RecordDebounce records one scheduling attempt outcome
func (c *Collector) RecordDebounce(outcome string) {
	defer swallow(c.logger)
	c.DebounceTotal.WithLabelValues(outcome).Inc()
}

// RecordFlushJob records one background flush job execution outcome
func (c *Collector) RecordFlushJob(status string) {
	defer swallow(c.logger)
	c.FlushJobsTotal.WithLabelValues(status).Inc()
}

// maybeAuditCardinality samples a low-probability check of the collector's own
// series count and warns when it exceeds the configured threshold.
func (c *Collector) maybeAuditCardinality() {
	if rand.Float64() >= c.auditSampleRate {
		return
	}

	c.auditMu.Lock()
	defer c.auditMu.Unlock()

	count, err := c.SeriesCount()
	if err != nil {
		c.logger.Warn("Metrics cardinality audit failed", zap.Error(err))
		return
	}

	if count > c.seriesThreshold {
		c.logger.Warn("Metrics series count above threshold",
			zap.Int("series", count),
			zap.Int("threshold", c.seriesThreshold),
		)
	}
}

// SeriesCount gathers the registry and counts distinct metric series
func (c *Collector) SeriesCount() (int, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, family := range families {
		count += len(family.GetMetric())
	}
	return count, nil
}

// Registry returns the prometheus registry for the scrape handler
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func swallow(logger *zap.Logger) {
	if r := recover(); r != nil {
		logger.Warn("Metrics backend failure swallowed", zap.Any("panic", r))
	}
}
