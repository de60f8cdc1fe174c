package invalidation

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"catalog-backend/internal/observability"
	"catalog-backend/internal/queue"
	"catalog-backend/pkg/errors"
)

// DebounceScheduler collapses repeated flush requests for the same id-set
// within a short window into a single delayed job. The only mutual-exclusion
// primitive is a short-TTL acquire-if-absent lock keyed by the id-set, so
// unrelated shards never contend.
type DebounceScheduler struct {
	locker  queue.Locker
	queue   queue.DelayedQueue
	lockTTL time.Duration
	delay   time.Duration
	prefix  string
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewDebounceScheduler creates a scheduler. lockTTL is the debounce window
// (~2s); delay is how long the queue holds the job before it becomes due
// (~5s). The caller's thread never sleeps for either.
func NewDebounceScheduler(
	locker queue.Locker,
	delayedQueue queue.DelayedQueue,
	lockTTL time.Duration,
	delay time.Duration,
	keyPrefix string,
	metrics *observability.Collector,
	logger *zap.Logger,
) *DebounceScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DebounceScheduler{
		locker:  locker,
		queue:   delayedQueue,
		lockTTL: lockTTL,
		delay:   delay,
		prefix:  keyPrefix,
		metrics: metrics,
		logger:  logger,
	}
}

// ScheduleFlush enqueues at most one delayed flush job per distinct id-set
// per rolling debounce window. A lock already held means a flush is already
// pending for this exact id-set; that surfaces as a SchedulingConflict error,
// which callers treat as success.
func (s *DebounceScheduler) ScheduleFlush(ctx context.Context, rootIDs []int64, reason string) error {
	lockKey := s.lockKey(rootIDs)

	acquired, err := s.locker.AcquireIfAbsent(ctx, lockKey, s.lockTTL)
	if err != nil {
		s.metrics.RecordDebounce("error")
		return errors.Wrap(err, "acquire debounce lock")
	}

	if !acquired {
		// Another caller scheduled this exact id-set inside the window. The
		// conflict is reported as a typed error, but callers treat it as
		// success: the flush they wanted is already pending.
		s.metrics.RecordDebounce("suppressed")
		s.logger.Debug("Flush already pending for id-set",
			zap.String("lock_key", lockKey),
			zap.Int64s("root_ids", rootIDs),
		)
		return errors.NewSchedulingConflict("flush already pending for id-set")
	}

	job := queue.NewFlushJob(rootIDs, reason)
	if err := s.queue.Enqueue(ctx, job, s.delay); err != nil {
		s.metrics.RecordDebounce("error")
		// The lock stays held until TTL; releasing it early would let a burst
		// enqueue duplicates while the backend is already struggling.
		return errors.Wrap(err, "enqueue flush job")
	}

	s.metrics.RecordDebounce("scheduled")
	s.logger.Debug("Scheduled delayed flush",
		zap.String("job_id", job.ID),
		zap.Int64s("root_ids", rootIDs),
		zap.String("reason", reason),
	)

	return nil
}

// lockKey hashes the sorted id-set so identical sets always collide and
// distinct sets practically never do.
func (s *DebounceScheduler) lockKey(rootIDs []int64) string {
	sorted := make([]int64, len(rootIDs))
	copy(sorted, rootIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	digest := xxhash.New()
	var buf [8]byte
	for _, id := range sorted {
		binary.LittleEndian.PutUint64(buf[:], uint64(id))
		digest.Write(buf[:])
	}

	return fmt.Sprintf("%sflush_lock_%016x", s.prefix, digest.Sum64())
}
