package cache

import (
	"fmt"

	"catalog-backend/internal/domain/category"
)

// Keys builds the deterministic cache key layout for tree reads.
//
// The layout is a stable external contract:
//
//	{prefix}tree_shard_{active|all}_{root_id}
//	{prefix}tree_{active|all}
//	{prefix}breadcrumbs_{id}
//	{prefix}children_{parent}_{active|all}
//	{prefix}descendants_{parent}_{active|all}
//	{prefix}statistics
type Keys struct {
	prefix string
}

// NewKeys creates a key builder with the given prefix
func NewKeys(prefix string) *Keys {
	return &Keys{prefix: prefix}
}

// TreeShard is the per-shard subtree key for one filter variant. The engine
// never writes this family itself; it is populated by the external tree
// assembler, and DeleteShard clears both variants on invalidation.
func (k *Keys) TreeShard(filter category.Filter, rootID int64) string {
	return fmt.Sprintf("%stree_shard_%s_%d", k.prefix, filter, rootID)
}

// Tree is the full assembled tree key for one filter variant
func (k *Keys) Tree(filter category.Filter) string {
	return fmt.Sprintf("%stree_%s", k.prefix, filter)
}

// Breadcrumbs is the ancestor-path key for one node
func (k *Keys) Breadcrumbs(id int64) string {
	return fmt.Sprintf("%sbreadcrumbs_%d", k.prefix, id)
}

// Children is the direct-children key for one parent and filter variant
func (k *Keys) Children(parentID int64, filter category.Filter) string {
	return fmt.Sprintf("%schildren_%d_%s", k.prefix, parentID, filter)
}

// Descendants is the full-subtree listing key for one parent and filter variant
func (k *Keys) Descendants(parentID int64, filter category.Filter) string {
	return fmt.Sprintf("%sdescendants_%d_%s", k.prefix, parentID, filter)
}

// Statistics is the single tree-wide counters key
func (k *Keys) Statistics() string {
	return fmt.Sprintf("%sstatistics", k.prefix)
}

// ShardTag groups every entry derived from one shard root
func (k *Keys) ShardTag(rootID int64) string {
	return fmt.Sprintf("shard_%d", rootID)
}

// TreeTag groups every entry the engine writes
func (k *Keys) TreeTag() string {
	return "tree"
}

// PatternFamilies enumerates the bounded set of key patterns that covers every
// key the engine can write. Backends without tag support clear these instead.
func (k *Keys) PatternFamilies() []string {
	return []string{
		k.prefix + "tree_shard_*",
		k.prefix + "tree_*",
		k.prefix + "breadcrumbs_*",
		k.prefix + "children_*",
		k.prefix + "descendants_*",
		k.prefix + "statistics",
	}
}
