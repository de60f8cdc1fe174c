package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"catalog-backend/internal/domain/category"
)

func TestKeys_StableLayout(t *testing.T) {
	// Arrange
	keys := NewKeys("catalog:")

	// Assert: the layout is an external contract, so exact strings matter
	assert.Equal(t, "catalog:tree_shard_active_7", keys.TreeShard(category.FilterActive, 7))
	assert.Equal(t, "catalog:tree_shard_all_7", keys.TreeShard(category.FilterAll, 7))
	assert.Equal(t, "catalog:tree_active", keys.Tree(category.FilterActive))
	assert.Equal(t, "catalog:tree_all", keys.Tree(category.FilterAll))
	assert.Equal(t, "catalog:breadcrumbs_42", keys.Breadcrumbs(42))
	assert.Equal(t, "catalog:children_3_active", keys.Children(3, category.FilterActive))
	assert.Equal(t, "catalog:descendants_3_all", keys.Descendants(3, category.FilterAll))
	assert.Equal(t, "catalog:statistics", keys.Statistics())
}

func TestKeys_Tags(t *testing.T) {
	keys := NewKeys("catalog:")

	assert.Equal(t, "shard_5", keys.ShardTag(5))
	assert.Equal(t, "tree", keys.TreeTag())
}

func TestKeys_PatternFamiliesAreBounded(t *testing.T) {
	// The degraded clear must enumerate a fixed set of patterns, never scan.
	keys := NewKeys("catalog:")

	families := keys.PatternFamilies()

	assert.Len(t, families, 6)
	for _, pattern := range families {
		assert.Contains(t, pattern, "catalog:")
	}
}
