// Package invalidation implements the tree cache invalidation engine: shard
// invalidations are aggregated per unit of work, applied as one batched clear
// at its end, and routed through a debounced fallback path whenever precise
// invalidation cannot be guaranteed.
package invalidation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"catalog-backend/internal/domain/category"
	"catalog-backend/internal/observability"
	"catalog-backend/pkg/errors"
)

// ShardStore is the invalidation surface of the tree cache store.
type ShardStore interface {
	// DeleteShard clears every cache entry derived from one shard root.
	DeleteShard(ctx context.Context, rootID int64) error
	// DeleteAllTagged clears every entry the engine has written.
	DeleteAllTagged(ctx context.Context) error
}

// State tracks the unit-of-work aggregation lifecycle
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateFlushing:
		return "flushing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CommitHookRegistrar is the unit-of-work boundary: it promises to invoke a
// registered hook exactly once, synchronously, when the unit of work ends.
type CommitHookRegistrar interface {
	RegisterCommitHook(hook func(ctx context.Context))
}

// Aggregator builds unit-of-work scoped invalidation collectors. It is safe
// to share across units of work; all mutable aggregation state lives in the
// UnitOfWork objects it creates, never in the process.
type Aggregator struct {
	resolver *category.RootResolver
	store    ShardStore
	fallback *FallbackPolicy
	metrics  *observability.Collector
	logger   *zap.Logger
}

// NewAggregator creates an aggregator
func NewAggregator(
	resolver *category.RootResolver,
	store ShardStore,
	fallback *FallbackPolicy,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		resolver: resolver,
		store:    store,
		fallback: fallback,
		metrics:  metrics,
		logger:   logger,
	}
}

// UnitOfWork collects the shard roots affected by one request or job and
// applies a single batched clear when the unit of work completes. It must not
// be carried across unit-of-work boundaries.
type UnitOfWork struct {
	agg       *Aggregator
	registrar CommitHookRegistrar

	mu         sync.Mutex
	state      State
	pending    mapset.Set[int64]
	registered bool
}

// NewUnitOfWork creates an idle collector scoped to one unit of work.
// The registrar may be nil when the caller invokes Complete directly.
func (a *Aggregator) NewUnitOfWork(registrar CommitHookRegistrar) *UnitOfWork {
	return &UnitOfWork{
		agg:       a,
		registrar: registrar,
		state:     StateIdle,
	}
}

// OnNodeChanged merges the changed node's shard root, and its previous root
// when the node was moved between subtrees, into the pending set. A reported
// move drops the stale memoized resolutions of the previous shard first, so
// the node resolves against its new parent chain. The first call transitions
// the unit of work to collecting and registers the completion hook once.
//
// Resolution failures do not abort the unit of work: the previous root (if
// any) is still collected, and an empty pending set at completion escalates
// through the fallback path.
func (u *UnitOfWork) OnNodeChanged(ctx context.Context, node *category.Node, previousRootID *int64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state == StateIdle {
		u.state = StateCollecting
	}
	if u.pending == nil {
		u.pending = mapset.NewThreadUnsafeSet[int64]()
	}

	if !u.registered && u.registrar != nil {
		u.registrar.RegisterCommitHook(u.Complete)
		u.registered = true
	}

	if previousRootID != nil {
		// The node moved between subtrees: it and any of its descendants may
		// still be memoized to the previous root, which would resolve the node
		// below to the stale root and hide the new shard from the pending set.
		if node != nil {
			u.agg.resolver.Forget(node.ID)
		}
		u.agg.resolver.ForgetTree(*previousRootID)
	}

	rootID, err := u.agg.resolver.Resolve(ctx, node)
	if err != nil {
		var nodeID int64
		if node != nil {
			nodeID = node.ID
		}
		u.agg.logger.Warn("Shard root resolution failed",
			zap.Error(err),
			zap.Int64("node_id", nodeID),
		)
	} else {
		u.pending.Add(rootID)
	}

	if previousRootID != nil {
		u.pending.Add(*previousRootID)
	}
}

// Pending returns a snapshot of the collected root ids, sorted
func (u *UnitOfWork) Pending() []int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return sortedIDs(u.pending)
}

// State returns the current lifecycle state
func (u *UnitOfWork) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Complete is the commit hook: it applies one batched clear for the pending
// roots, escalates failures through the fallback path, and unconditionally
// drains the pending set so no state leaks into the next unit of work.
//
// Complete never panics and never blocks on the fallback path.
func (u *UnitOfWork) Complete(ctx context.Context) {
	u.mu.Lock()
	if u.state != StateCollecting {
		// Nothing collected, or already flushed; a second invocation of the
		// boundary hook is a no-op.
		u.mu.Unlock()
		return
	}
	u.state = StateFlushing
	ids := sortedIDs(u.pending)
	u.pending = nil
	u.registered = false
	u.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			u.agg.logger.Error("Panic during invalidation flush",
				zap.Any("panic", r),
				zap.Int64s("root_ids", ids),
			)
			u.agg.fallback.Escalate(ctx, ReasonException, ids, fmt.Errorf("flush panic: %v", r))
		}
		u.mu.Lock()
		u.state = StateIdle
		u.mu.Unlock()
	}()

	if len(ids) == 0 {
		u.agg.fallback.Escalate(ctx, ReasonEmptyRootIDs, nil, nil)
		return
	}

	var failed []int64
	var firstErr error
	for _, rootID := range ids {
		err := u.agg.store.DeleteShard(ctx, rootID)
		u.agg.metrics.RecordShardClear(err == nil)
		if err != nil {
			failed = append(failed, rootID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if len(failed) > 0 {
		u.agg.logger.Warn("Batched shard clear partially failed",
			zap.Int("requested", len(ids)),
			zap.Int("failed", len(failed)),
			zap.Error(firstErr),
		)
		cause := errors.NewPartialInvalidation("batched shard clear incomplete", failed, firstErr)
		u.agg.fallback.Escalate(ctx, ReasonPartialFailure, errors.FailedIDs(cause), cause)
		return
	}

	u.agg.logger.Debug("Batched shard clear applied",
		zap.Int64s("root_ids", ids),
	)
}

func sortedIDs(set mapset.Set[int64]) []int64 {
	if set == nil {
		return nil
	}
	ids := set.ToSlice()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
