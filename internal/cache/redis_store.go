package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore is the shared key-value backend. It implements TagCapable: every
// tagged write registers the key in a per-tag set, and a tag delete drops the
// whole group in one round trip of bounded size.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed store. The prefix namespaces the tag
// index sets alongside the cache keys they track.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Get retrieves a value, mapping redis.Nil to a plain miss
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores a value with the given TTL
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// SetTagged stores a value and registers it in each tag's index set.
// SET and SADD run in one transactional pipeline so concurrent readers never
// observe a key that its tag group does not know about.
func (s *RedisStore) SetTagged(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, value, ttl)
	for _, tag := range tags {
		tagKey := s.tagKey(tag)
		pipe.SAdd(ctx, tagKey, key)
		// Tag sets outlive their members so a late clear still finds them;
		// deleting an already-expired member is a harmless no-op.
		pipe.Expire(ctx, tagKey, 2*ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes a single key, reporting whether it was present
func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// DeleteTag removes every key registered under the tag, then the index itself
func (s *RedisStore) DeleteTag(ctx context.Context, tag string) error {
	tagKey := s.tagKey(tag)

	members, err := s.client.SMembers(ctx, tagKey).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	if len(members) > 0 {
		if err := s.client.Del(ctx, members...).Err(); err != nil {
			return err
		}
	}

	if err := s.client.Del(ctx, tagKey).Err(); err != nil {
		return err
	}

	s.logger.Debug("Cleared tag group",
		zap.String("tag", tag),
		zap.Int("count", len(members)),
	)

	return nil
}

func (s *RedisStore) tagKey(tag string) string {
	return s.prefix + "tags_" + tag
}
