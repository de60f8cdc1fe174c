// Package catalog exposes the cache-through read operations over the category
// tree. Every read is keyed deterministically, falls through to the source of
// truth on miss or any cache-layer failure, and repopulates the cache so the
// next identical read hits. Callers never observe a cache-layer error.
package catalog

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"catalog-backend/internal/cache"
	"catalog-backend/internal/domain/category"
	"catalog-backend/internal/observability"
)

// Source is the out-of-scope persistence layer: the source of truth the cache
// falls through to.
type Source interface {
	category.ParentLookup

	Tree(ctx context.Context, filter category.Filter) ([]*TreeNode, error)
	Breadcrumbs(ctx context.Context, nodeID int64) ([]*category.Node, error)
	Children(ctx context.Context, parentID int64, filter category.Filter) ([]*category.Node, error)
	Descendants(ctx context.Context, parentID int64, filter category.Filter) ([]*category.Node, error)
	Statistics(ctx context.Context) (*Statistics, error)
}

// TreeNode is a category with its nested children, as served to readers
type TreeNode struct {
	category.Node
	Children []*TreeNode `json:"children,omitempty"`
}

// Statistics aggregates tree-wide counters
type Statistics struct {
	TotalCount  int `json:"total_count"`
	ActiveCount int `json:"active_count"`
	RootCount   int `json:"root_count"`
	MaxDepth    int `json:"max_depth"`
}

// Service provides the cache-through reads
type Service struct {
	source   Source
	store    *cache.TreeStore
	resolver *category.RootResolver
	ttl      time.Duration
	metrics  *observability.Collector
	logger   *zap.Logger

	// group collapses concurrent identical cold reads into one source query
	group singleflight.Group
}

// NewService creates a catalog read service
func NewService(
	source Source,
	store *cache.TreeStore,
	resolver *category.RootResolver,
	ttl time.Duration,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:   source,
		store:    store,
		resolver: resolver,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetTree returns the full category tree for one filter variant
func (s *Service) GetTree(ctx context.Context, filter category.Filter) ([]*TreeNode, error) {
	key := s.store.Keys().Tree(filter)

	var tree []*TreeNode
	_, err := s.readThrough(ctx, "get_tree", key, string(filter), &tree, func() (any, []int64, error) {
		nodes, err := s.source.Tree(ctx, filter)
		return nodes, nil, err
	})
	return tree, err
}

// GetBreadcrumbs returns the ancestor path from the shard root down to the node
func (s *Service) GetBreadcrumbs(ctx context.Context, nodeID int64) ([]*category.Node, error) {
	key := s.store.Keys().Breadcrumbs(nodeID)

	var crumbs []*category.Node
	_, err := s.readThrough(ctx, "get_breadcrumbs", key, string(category.FilterAll), &crumbs, func() (any, []int64, error) {
		path, err := s.source.Breadcrumbs(ctx, nodeID)
		if err != nil {
			return nil, nil, err
		}
		// The first breadcrumb is the shard root; tag the entry with it so a
		// shard clear takes this path out too.
		var roots []int64
		if len(path) > 0 {
			roots = []int64{path[0].ID}
		}
		return path, roots, err
	})
	return crumbs, err
}

// GetChildren returns the direct children of a parent for one filter variant
func (s *Service) GetChildren(ctx context.Context, parentID int64, filter category.Filter) ([]*category.Node, error) {
	key := s.store.Keys().Children(parentID, filter)

	var children []*category.Node
	_, err := s.readThrough(ctx, "get_children", key, string(filter), &children, func() (any, []int64, error) {
		nodes, err := s.source.Children(ctx, parentID, filter)
		if err != nil {
			return nil, nil, err
		}
		return nodes, s.shardRoots(ctx, parentID), nil
	})
	return children, err
}

// GetDescendants returns the whole subtree under a parent for one filter variant
func (s *Service) GetDescendants(ctx context.Context, parentID int64, filter category.Filter) ([]*category.Node, error) {
	key := s.store.Keys().Descendants(parentID, filter)

	var descendants []*category.Node
	_, err := s.readThrough(ctx, "get_descendants", key, string(filter), &descendants, func() (any, []int64, error) {
		nodes, err := s.source.Descendants(ctx, parentID, filter)
		if err != nil {
			return nil, nil, err
		}
		return nodes, s.shardRoots(ctx, parentID), nil
	})
	return descendants, err
}

// GetStatistics returns the tree-wide counters
func (s *Service) GetStatistics(ctx context.Context) (*Statistics, error) {
	key := s.store.Keys().Statistics()

	var stats *Statistics
	_, err := s.readThrough(ctx, "get_statistics", key, string(category.FilterAll), &stats, func() (any, []int64, error) {
		computed, err := s.source.Statistics(ctx)
		return computed, nil, err
	})
	return stats, err
}

// readThrough is the shared cache-through read: try the cache, fall through to
// the source on miss or cache error, and repopulate. compute returns the fresh
// value plus the shard roots to tag the entry with. target must be a pointer.
func (s *Service) readThrough(
	ctx context.Context,
	operation string,
	key string,
	statusFilter string,
	target any,
	compute func() (any, []int64, error),
) (hit bool, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordRead(operation, hit, statusFilter, time.Since(start).Seconds())
	}()

	if data, found, cacheErr := s.store.Get(ctx, key); cacheErr != nil {
		s.logger.Warn("Cache read failed, falling through to source",
			zap.String("key", key),
			zap.Error(cacheErr),
		)
	} else if found {
		if unmarshalErr := json.Unmarshal(data, target); unmarshalErr == nil {
			hit = true
			return true, nil
		}
		// Undecodable entry: treat as a miss and overwrite below.
	}

	// One source query per key no matter how many readers miss concurrently.
	fresh, err, _ := s.group.Do(key, func() (any, error) {
		value, roots, computeErr := compute()
		if computeErr != nil {
			return nil, computeErr
		}

		data, marshalErr := json.Marshal(value)
		if marshalErr != nil {
			return nil, marshalErr
		}

		if setErr := s.store.Set(ctx, key, data, s.ttl, roots...); setErr != nil {
			s.logger.Warn("Cache populate failed",
				zap.String("key", key),
				zap.Error(setErr),
			)
		}
		return data, nil
	})
	if err != nil {
		return false, err
	}

	return false, json.Unmarshal(fresh.([]byte), target)
}

// shardRoots resolves the shard root a parent-scoped entry belongs to.
// Resolution failure just means the entry goes untagged; it stays reachable
// by the coarse clear and its own TTL.
func (s *Service) shardRoots(ctx context.Context, parentID int64) []int64 {
	node, err := s.source.NodeByID(ctx, parentID)
	if err != nil || node == nil {
		return nil
	}
	rootID, err := s.resolver.Resolve(ctx, node)
	if err != nil {
		return nil
	}
	return []int64{rootID}
}
