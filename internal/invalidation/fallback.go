package invalidation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"catalog-backend/internal/observability"
	"catalog-backend/pkg/errors"
)

// Reason codes for routing an invalidation to the fallback path
type Reason string

const (
	ReasonEmptyRootIDs   Reason = "empty_root_ids"
	ReasonPartialFailure Reason = "partial_failure"
	ReasonException      Reason = "exception"
)

// hints map each reason to a static operator-facing remediation note,
// logged alongside the escalation.
var hints = map[Reason]string{
	ReasonEmptyRootIDs:   "check parent references and resolver lookups; a coarse clear was scheduled instead",
	ReasonPartialFailure: "check key-value backend health; only the failed shards were rescheduled",
	ReasonException:      "inspect the flush panic log entry; the affected shards were rescheduled",
}

// FallbackPolicy degrades imprecise invalidations to a debounced background
// flush. It never returns an error and never panics: every internal failure
// still ends with a fallback flush being scheduled or, at worst, the data
// going stale until its natural TTL expiry.
type FallbackPolicy struct {
	scheduler *DebounceScheduler
	metrics   *observability.Collector
	logger    *zap.Logger

	mu    sync.Mutex
	stats map[Reason]int64
}

// NewFallbackPolicy creates a fallback policy
func NewFallbackPolicy(scheduler *DebounceScheduler, metrics *observability.Collector, logger *zap.Logger) *FallbackPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackPolicy{
		scheduler: scheduler,
		metrics:   metrics,
		logger:    logger,
		stats:     make(map[Reason]int64),
	}
}

// Escalate records the reason and delegates the affected id set to the
// debounce scheduler. An empty id set schedules a coarse full clear.
func (p *FallbackPolicy) Escalate(ctx context.Context, reason Reason, rootIDs []int64, cause error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Panic inside fallback policy", zap.Any("panic", r))
		}
	}()

	p.mu.Lock()
	p.stats[reason]++
	p.mu.Unlock()

	p.metrics.RecordFallback(string(reason))

	p.logger.Warn("Invalidation degraded to fallback flush",
		zap.String("reason", string(reason)),
		zap.String("hint", hints[reason]),
		zap.Int64s("root_ids", rootIDs),
		zap.Error(cause),
	)

	err := p.scheduler.ScheduleFlush(ctx, rootIDs, string(reason))
	switch {
	case err == nil:
	case errors.IsSchedulingConflict(err):
		// A flush for this exact id-set is already pending; nothing to do.
	default:
		// Scheduling itself failed; the cache stays stale until TTL expiry.
		p.logger.Error("Fallback flush scheduling failed, data stale until TTL",
			zap.Error(err),
			zap.Int64s("root_ids", rootIDs),
		)
	}
}

// Stats returns a snapshot of the process-lifetime escalation counters
func (p *FallbackPolicy) Stats() map[Reason]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := make(map[Reason]int64, len(p.stats))
	for reason, count := range p.stats {
		snapshot[reason] = count
	}
	return snapshot
}

// FlushStats logs the accumulated counters and resets them
func (p *FallbackPolicy) FlushStats() {
	p.mu.Lock()
	stats := p.stats
	p.stats = make(map[Reason]int64)
	p.mu.Unlock()

	if len(stats) == 0 {
		return
	}

	fields := make([]zap.Field, 0, len(stats))
	for reason, count := range stats {
		fields = append(fields, zap.Int64(string(reason), count))
	}
	p.logger.Info("Fallback escalation counters", fields...)
}

// StartStatsLoop periodically flushes the counters until the context ends
func (p *FallbackPolicy) StartStatsLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.FlushStats()
				return
			case <-ticker.C:
				p.FlushStats()
			}
		}
	}()
}
