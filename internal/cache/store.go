// Package cache implements the read-optimized tree cache store and its
// invalidation surface over a shared key-value backend.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"catalog-backend/internal/domain/category"
	"catalog-backend/pkg/errors"
)

// Store abstracts the key-value backend.
// Get reports a miss with found=false and a nil error; errors are reserved for
// backend failures.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
}

// TagCapable is a backend that can group entries under tags and bulk-delete a
// whole tag group.
type TagCapable interface {
	Store
	SetTagged(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	DeleteTag(ctx context.Context, tag string) error
}

// PatternCapable is a backend that can only clear by key pattern. Used as the
// degraded grouping mechanism when tags are unavailable.
type PatternCapable interface {
	Store
	Clear(ctx context.Context, pattern string) error
}

// TreeStore is the engine's view of the cache backend. The grouping capability
// (tags vs. bounded pattern clear) is selected once at construction, never
// probed per call.
type TreeStore struct {
	store  Store
	tagged TagCapable     // non-nil when the backend supports tag grouping
	flat   PatternCapable // non-nil otherwise
	keys   *Keys
	logger *zap.Logger
}

// NewTreeStore wraps a backend, picking the tag-grouped path when available.
// Backends with neither capability are rejected outright rather than silently
// losing the ability to invalidate.
func NewTreeStore(store Store, keys *Keys, logger *zap.Logger) (*TreeStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ts := &TreeStore{store: store, keys: keys, logger: logger}

	switch backend := store.(type) {
	case TagCapable:
		ts.tagged = backend
	case PatternCapable:
		ts.flat = backend
		logger.Warn("Cache backend lacks tag support, shard clears degrade to bounded pattern clears")
	default:
		return nil, errors.NewStoreCapability("backend supports neither tags nor pattern clear")
	}

	return ts, nil
}

// Tagged reports whether the backend groups entries by tag
func (s *TreeStore) Tagged() bool {
	return s.tagged != nil
}

// Keys exposes the key builder shared with read paths
func (s *TreeStore) Keys() *Keys {
	return s.keys
}

// Get fetches a cache entry
func (s *TreeStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.store.Get(ctx, key)
}

// Set stores a cache entry grouped under the given shard roots.
// On a tag-capable backend the entry joins its shard tag groups plus the
// tree-wide group; otherwise a plain set suffices because pattern clears cover
// every key family.
func (s *TreeStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, rootIDs ...int64) error {
	if s.tagged == nil {
		return s.store.Set(ctx, key, value, ttl)
	}

	tags := make([]string, 0, len(rootIDs)+1)
	tags = append(tags, s.keys.TreeTag())
	for _, rootID := range rootIDs {
		tags = append(tags, s.keys.ShardTag(rootID))
	}
	return s.tagged.SetTagged(ctx, key, value, ttl, tags...)
}

// DeleteShard clears every cache entry derived from one shard root: both
// filter variants of the shard key, the shard's tag group (or the degraded
// pattern set), plus the assembled-tree and statistics keys, which aggregate
// data across shards.
func (s *TreeStore) DeleteShard(ctx context.Context, rootID int64) error {
	for _, key := range []string{
		s.keys.TreeShard(category.FilterActive, rootID),
		s.keys.TreeShard(category.FilterAll, rootID),
		s.keys.Tree(category.FilterActive),
		s.keys.Tree(category.FilterAll),
		s.keys.Statistics(),
	} {
		if _, err := s.store.Delete(ctx, key); err != nil {
			return errors.Wrap(err, "delete shard key "+key)
		}
	}

	if s.tagged != nil {
		if err := s.tagged.DeleteTag(ctx, s.keys.ShardTag(rootID)); err != nil {
			return errors.Wrap(err, "delete shard tag group")
		}
		return nil
	}

	// Degraded mode: per-shard grouping is not expressible as a bounded
	// pattern, so clear the derived key families wholesale.
	for _, pattern := range []string{
		s.keys.prefix + "breadcrumbs_*",
		s.keys.prefix + "children_*",
		s.keys.prefix + "descendants_*",
	} {
		if err := s.flat.Clear(ctx, pattern); err != nil {
			return errors.Wrap(err, "pattern clear "+pattern)
		}
	}
	return nil
}

// DeleteAllTagged clears every entry the engine has written. On a tag-capable
// backend this drops the tree-wide tag group; otherwise it degrades to the
// bounded, enumerable set of known key patterns and logs a capability warning
// rather than silently doing nothing or scanning an unbounded keyspace.
func (s *TreeStore) DeleteAllTagged(ctx context.Context) error {
	if s.tagged != nil {
		return s.tagged.DeleteTag(ctx, s.keys.TreeTag())
	}

	s.logger.Warn("Tag-grouped clear unavailable, falling back to pattern clear of known key families")
	for _, pattern := range s.keys.PatternFamilies() {
		if err := s.flat.Clear(ctx, pattern); err != nil {
			return errors.Wrap(err, "pattern clear "+pattern)
		}
	}
	return nil
}
