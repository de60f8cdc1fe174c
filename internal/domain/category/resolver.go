package category

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"catalog-backend/pkg/errors"
)

// ParentLookup fetches a node by id from the source of truth.
// A nil node with a nil error means the id does not exist.
type ParentLookup interface {
	NodeByID(ctx context.Context, id int64) (*Node, error)
}

// RootResolver computes the top-level ancestor of any node.
//
// The walk is iterative rather than recursive so stack depth stays bounded on
// pathological trees, and resolved roots are memoized so repeated resolutions
// within one unit of work cost O(1) amortized.
type RootResolver struct {
	lookup ParentLookup
	memo   *ttlcache.Cache[int64, int64]
	logger *zap.Logger
}

// NewRootResolver creates a resolver with a memo table bounded by the given TTL
func NewRootResolver(lookup ParentLookup, memoTTL time.Duration, logger *zap.Logger) *RootResolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	memo := ttlcache.New[int64, int64](
		ttlcache.WithTTL[int64, int64](memoTTL),
		ttlcache.WithDisableTouchOnHit[int64, int64](),
	)
	go memo.Start()

	return &RootResolver{
		lookup: lookup,
		memo:   memo,
		logger: logger,
	}
}

// Resolve returns the shard root id for the given node.
//
// A node whose parent chain cannot be followed (missing parent reference,
// lookup failure mid-chain) resolves to the highest ancestor that could be
// reached; a node with no resolvable parent at all resolves to itself.
func (r *RootResolver) Resolve(ctx context.Context, node *Node) (int64, error) {
	if node == nil {
		return 0, errors.NewResolution("cannot resolve root of nil node", nil)
	}

	if item := r.memo.Get(node.ID); item != nil {
		return item.Value(), nil
	}

	rootID := node.ID
	parentID := node.ParentID

	// visited guards against cycles that would violate the tree invariant;
	// hitting one is a data bug, not a reason to spin forever.
	visited := map[int64]struct{}{node.ID: {}}
	chain := []int64{node.ID}

	for parentID != nil {
		if _, seen := visited[*parentID]; seen {
			r.logger.Warn("Cycle detected in category parent chain",
				zap.Int64("node_id", node.ID),
				zap.Int64("repeated_id", *parentID),
			)
			return 0, errors.NewResolution("cycle in parent chain", nil)
		}

		parent, err := r.lookup.NodeByID(ctx, *parentID)
		if err != nil {
			return 0, errors.NewResolution("parent lookup failed", err)
		}
		if parent == nil {
			// Dangling parent reference: treat the last reachable node as root.
			r.logger.Warn("Dangling parent reference while resolving root",
				zap.Int64("node_id", node.ID),
				zap.Int64("missing_parent_id", *parentID),
			)
			break
		}

		rootID = parent.ID
		visited[parent.ID] = struct{}{}
		chain = append(chain, parent.ID)
		parentID = parent.ParentID
	}

	// Every node on the walked chain shares the same root.
	for _, id := range chain {
		r.memo.Set(id, rootID, ttlcache.DefaultTTL)
	}

	return rootID, nil
}

// Forget drops a node's memoized root, used after a node is re-parented
func (r *RootResolver) Forget(id int64) {
	r.memo.Delete(id)
}

// ForgetTree drops every memoized resolution that landed on the given root.
// When a subtree is re-parented, the moved node and all of its descendants
// were memoized to the old root, and the descendants' ids are not enumerable
// here; dropping the whole shard's memo is the bounded over-approximation.
func (r *RootResolver) ForgetTree(rootID int64) {
	var stale []int64
	r.memo.Range(func(item *ttlcache.Item[int64, int64]) bool {
		if item.Value() == rootID {
			stale = append(stale, item.Key())
		}
		return true
	})
	for _, id := range stale {
		r.memo.Delete(id)
	}
}

// Stop shuts down the memo table's expiry loop
func (r *RootResolver) Stop() {
	r.memo.Stop()
}
