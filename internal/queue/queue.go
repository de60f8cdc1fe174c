// Package queue provides the delayed-job lane and the debounce lock used by
// the cache invalidation engine. Delivery is at-least-once; flush jobs are
// idempotent so duplicate delivery is safe.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FlushJob asks the background worker to clear the cache shards for a set of
// root ids. Reason records why the precise invalidation path was bypassed.
type FlushJob struct {
	ID         string    `json:"id"`
	RootIDs    []int64   `json:"root_ids"`
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewFlushJob creates a flush job for the given root ids
func NewFlushJob(rootIDs []int64, reason string) FlushJob {
	return FlushJob{
		ID:         uuid.NewString(),
		RootIDs:    rootIDs,
		Reason:     reason,
		EnqueuedAt: time.Now().UTC(),
	}
}

// DelayedQueue is a named lane offering at-least-once delayed execution.
type DelayedQueue interface {
	// Enqueue schedules a job to become due after the delay. It never blocks
	// on the job's execution.
	Enqueue(ctx context.Context, job FlushJob, delay time.Duration) error

	// Dequeue claims the next due job, or returns nil when none is due.
	Dequeue(ctx context.Context) (*FlushJob, error)
}

// Locker is the atomic acquire-if-absent primitive backing debouncing.
// Locks expire naturally; there is no explicit release.
type Locker interface {
	AcquireIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
