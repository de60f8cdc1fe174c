package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-process delayed-job lane for local runs and tests.
// It honors due times on Dequeue without sleeping any thread.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []delayedJob

	// now is swappable so tests can control time
	now func() time.Time
}

type delayedJob struct {
	job FlushJob
	due time.Time
}

// NewMemoryQueue creates an empty in-process lane
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{now: time.Now}
}

// SetClock replaces the time source, for tests
func (q *MemoryQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Enqueue schedules a job to become due after the delay
func (q *MemoryQueue) Enqueue(ctx context.Context, job FlushJob, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.jobs = append(q.jobs, delayedJob{job: job, due: q.now().Add(delay)})
	sort.Slice(q.jobs, func(i, j int) bool { return q.jobs[i].due.Before(q.jobs[j].due) })
	return nil
}

// Dequeue claims the next due job, or returns nil when none is due
func (q *MemoryQueue) Dequeue(ctx context.Context) (*FlushJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 || q.jobs[0].due.After(q.now()) {
		return nil, nil
	}

	job := q.jobs[0].job
	q.jobs = q.jobs[1:]
	return &job, nil
}

// Len reports the number of scheduled jobs, due or not
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// MemoryLocker is an in-process acquire-if-absent lock table with TTL expiry
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

// NewMemoryLocker creates an empty lock table
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

// SetClock replaces the time source, for tests
func (l *MemoryLocker) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// AcquireIfAbsent atomically sets the lock key if not already held.
// Expired locks are swept on each acquire so the table stays bounded by the
// number of live locks, not the number of distinct id-sets ever seen.
func (l *MemoryLocker) AcquireIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for held, expiry := range l.locks {
		if !now.Before(expiry) {
			delete(l.locks, held)
		}
	}

	if _, held := l.locks[key]; held {
		return false, nil
	}
	l.locks[key] = now.Add(ttl)
	return true, nil
}

// Len reports the number of live locks
func (l *MemoryLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
