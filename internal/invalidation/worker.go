package invalidation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"catalog-backend/internal/observability"
	"catalog-backend/internal/queue"
	"catalog-backend/pkg/errors"
)

// RetryConfig defines the flush worker's bounded retry behavior
type RetryConfig struct {
	MaxAttempts   int           // Maximum number of attempts per job
	BaseDelay     time.Duration // Base delay between retries
	MaxDelay      time.Duration // Maximum delay between retries
	BackoffFactor float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// FlushWorker consumes delayed flush jobs from the dedicated low-priority
// lane. Transient failures are retried a bounded number of times; exhausting
// the budget logs at high severity and drops the job without crashing the
// worker, leaving the data stale until its natural TTL expiry.
type FlushWorker struct {
	queue     queue.DelayedQueue
	store     ShardStore
	retry     RetryConfig
	pollEvery time.Duration
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewFlushWorker creates a worker polling the lane at the given interval
func NewFlushWorker(
	delayedQueue queue.DelayedQueue,
	store ShardStore,
	retry RetryConfig,
	pollEvery time.Duration,
	metrics *observability.Collector,
	logger *zap.Logger,
) *FlushWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlushWorker{
		queue:     delayedQueue,
		store:     store,
		retry:     retry,
		pollEvery: pollEvery,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run polls the lane until the context is cancelled
func (w *FlushWorker) Run(ctx context.Context) {
	w.logger.Info("Starting background flush worker",
		zap.Duration("poll_every", w.pollEvery),
		zap.Int("max_attempts", w.retry.MaxAttempts),
	)

	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Flush worker shutting down")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes every currently-due job before going back to sleep
func (w *FlushWorker) drain(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logger.Warn("Flush lane dequeue failed", zap.Error(err))
			return
		}
		if job == nil {
			return
		}
		w.Process(ctx, *job)
	}
}

// Process executes one flush job with bounded retries. It never returns an
// error to its caller; exhaustion is logged and counted.
func (w *FlushWorker) Process(ctx context.Context, job queue.FlushJob) {
	backoff := w.retry.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= w.retry.MaxAttempts; attempt++ {
		lastErr = w.execute(ctx, job)
		if lastErr == nil {
			w.metrics.RecordFlushJob("success")
			w.logger.Debug("Flush job completed",
				zap.String("job_id", job.ID),
				zap.Int64s("root_ids", job.RootIDs),
				zap.Int("attempt", attempt),
			)
			return
		}

		if attempt < w.retry.MaxAttempts {
			w.metrics.RecordFlushJob("retry")
			w.logger.Warn("Retrying flush job",
				zap.String("job_id", job.ID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)

			select {
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * w.retry.BackoffFactor)
				if backoff > w.retry.MaxDelay {
					backoff = w.retry.MaxDelay
				}
			case <-ctx.Done():
				w.metrics.RecordFlushJob("dropped")
				w.logger.Error("Flush job abandoned during shutdown",
					zap.String("job_id", job.ID),
					zap.Int64s("root_ids", job.RootIDs),
				)
				return
			}
		}
	}

	w.metrics.RecordFlushJob("dropped")
	w.logger.Error("Flush job retries exhausted, data stale until TTL",
		zap.String("job_id", job.ID),
		zap.Int64s("root_ids", job.RootIDs),
		zap.String("reason", job.Reason),
		zap.Error(errors.NewWorkerExecution("retries exhausted", lastErr)),
	)
}

// execute clears the job's shards; an empty id set means precise invalidation
// was impossible and degrades to a coarse clear of everything the engine wrote.
func (w *FlushWorker) execute(ctx context.Context, job queue.FlushJob) error {
	if len(job.RootIDs) == 0 {
		return w.store.DeleteAllTagged(ctx)
	}

	for _, rootID := range job.RootIDs {
		if err := w.store.DeleteShard(ctx, rootID); err != nil {
			return err
		}
	}
	return nil
}
