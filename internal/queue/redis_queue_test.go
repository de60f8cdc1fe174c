package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRedis(t)
	q := NewRedisQueue(client, "cache-flush-low", zap.NewNop())

	// Due immediately
	enqueued := NewFlushJob([]int64{7, 9}, "partial_failure")
	require.NoError(t, q.Enqueue(ctx, enqueued, 0))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, enqueued.ID, job.ID)
	assert.Equal(t, []int64{7, 9}, job.RootIDs)

	// The claim removed the member; a second dequeue finds nothing.
	job, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRedisQueue_NotDueYet(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRedis(t)
	q := NewRedisQueue(client, "cache-flush-low", zap.NewNop())

	require.NoError(t, q.Enqueue(ctx, NewFlushJob([]int64{1}, "exception"), time.Hour))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRedisQueue_DropsUndecodableJob(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	q := NewRedisQueue(client, "cache-flush-low", zap.NewNop())

	_, err := mr.ZAdd("cache-flush-low", 0, "not json")
	require.NoError(t, err)

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRedisLocker_AcquireIfAbsent(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	l := NewRedisLocker(client)

	acquired, err := l.AcquireIfAbsent(ctx, "flush_lock_x", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = l.AcquireIfAbsent(ctx, "flush_lock_x", 2*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired)

	mr.FastForward(3 * time.Second)

	acquired, err = l.AcquireIfAbsent(ctx, "flush_lock_x", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
}
