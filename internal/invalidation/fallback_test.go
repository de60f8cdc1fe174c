package invalidation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalog-backend/internal/observability"
	"catalog-backend/internal/queue"
)

func newFallbackFixture(t *testing.T) (*FallbackPolicy, *queue.MemoryQueue) {
	t.Helper()

	memQueue := queue.NewMemoryQueue()
	metrics := observability.NewCollector("test", 64, 0, zap.NewNop())
	scheduler := NewDebounceScheduler(
		queue.NewMemoryLocker(), memQueue, 2*time.Second, 0, "c:", metrics, zap.NewNop())

	return NewFallbackPolicy(scheduler, metrics, zap.NewNop()), memQueue
}

func TestEscalate_SchedulesFlushAndCounts(t *testing.T) {
	ctx := context.Background()
	policy, memQueue := newFallbackFixture(t)

	policy.Escalate(ctx, ReasonPartialFailure, []int64{4, 2}, fmt.Errorf("backend down"))

	job, err := memQueue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, []int64{4, 2}, job.RootIDs)
	assert.Equal(t, string(ReasonPartialFailure), job.Reason)

	stats := policy.Stats()
	assert.Equal(t, int64(1), stats[ReasonPartialFailure])
}

func TestEscalate_NeverPanics(t *testing.T) {
	// A nil scheduler makes ScheduleFlush blow up; the policy must absorb it.
	policy := NewFallbackPolicy(nil, observability.NewCollector("test", 64, 0, zap.NewNop()), zap.NewNop())

	assert.NotPanics(t, func() {
		policy.Escalate(context.Background(), ReasonException, []int64{1}, nil)
	})
	assert.Equal(t, int64(1), policy.Stats()[ReasonException])
}

func TestFlushStats_ResetsCounters(t *testing.T) {
	ctx := context.Background()
	policy, _ := newFallbackFixture(t)
	policy.Escalate(ctx, ReasonEmptyRootIDs, nil, nil)
	policy.Escalate(ctx, ReasonEmptyRootIDs, nil, nil)
	policy.Escalate(ctx, ReasonException, []int64{9}, nil)

	require.Equal(t, int64(2), policy.Stats()[ReasonEmptyRootIDs])

	policy.FlushStats()

	assert.Empty(t, policy.Stats())
}

func TestStats_ReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	policy, _ := newFallbackFixture(t)
	policy.Escalate(ctx, ReasonException, []int64{1}, nil)

	snapshot := policy.Stats()
	snapshot[ReasonException] = 99

	assert.Equal(t, int64(1), policy.Stats()[ReasonException], "mutating the snapshot must not touch the counters")
}
