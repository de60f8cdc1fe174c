package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisQueue is a delayed-job lane over a Redis sorted set: the member is the
// serialized job, the score its due time. Claiming is ZREM-guarded so a job
// goes to exactly one consumer even with several workers polling the lane.
type RedisQueue struct {
	client *redis.Client
	lane   string
	logger *zap.Logger
}

// NewRedisQueue creates a queue on the named lane
func NewRedisQueue(client *redis.Client, lane string, logger *zap.Logger) *RedisQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{
		client: client,
		lane:   lane,
		logger: logger,
	}
}

// Enqueue schedules a job to become due after the delay
func (q *RedisQueue) Enqueue(ctx context.Context, job FlushJob, delay time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	due := float64(time.Now().Add(delay).UnixMilli())
	if err := q.client.ZAdd(ctx, q.lane, redis.Z{Score: due, Member: payload}).Err(); err != nil {
		return err
	}

	q.logger.Debug("Enqueued flush job",
		zap.String("job_id", job.ID),
		zap.String("lane", q.lane),
		zap.Duration("delay", delay),
		zap.Int64s("root_ids", job.RootIDs),
	)

	return nil
}

// Dequeue claims the next due job, or returns nil when none is due
func (q *RedisQueue) Dequeue(ctx context.Context) (*FlushJob, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	members, err := q.client.ZRangeByScore(ctx, q.lane, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: 1,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	// ZREM is the claim: whichever consumer removes the member owns the job.
	removed, err := q.client.ZRem(ctx, q.lane, members[0]).Result()
	if err != nil {
		return nil, err
	}
	if removed == 0 {
		return nil, nil
	}

	var job FlushJob
	if err := json.Unmarshal([]byte(members[0]), &job); err != nil {
		q.logger.Error("Dropping undecodable flush job", zap.Error(err))
		return nil, nil
	}

	return &job, nil
}

// RedisLocker implements the debounce lock with SET NX PX
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// AcquireIfAbsent atomically sets the lock key if not already held
func (l *RedisLocker) AcquireIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, 1, ttl).Result()
}
