package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMemoryStore() *MemoryStore {
	return NewMemoryStore(100, 1<<20, zap.NewNop())
}

func TestMemoryStore_SetGet(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := newTestMemoryStore()

	// Act
	err := store.Set(ctx, "k1", []byte("v1"), time.Minute)
	require.NoError(t, err)

	value, found, err := store.Get(ctx, "k1")

	// Assert
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), value)
}

func TestMemoryStore_GetMiss(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore()

	_, found, err := store.Get(ctx, "absent")

	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_ExpiredEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), -time.Second))

	_, found, err := store.Get(ctx, "k1")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore()
	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute))

	removed, err := store.Delete(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemoryStore_ClearPattern(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := newTestMemoryStore()
	require.NoError(t, store.Set(ctx, "catalog:children_1_active", []byte("a"), time.Minute))
	require.NoError(t, store.Set(ctx, "catalog:children_2_all", []byte("b"), time.Minute))
	require.NoError(t, store.Set(ctx, "catalog:statistics", []byte("c"), time.Minute))

	// Act
	require.NoError(t, store.Clear(ctx, "catalog:children_*"))

	// Assert
	_, found, _ := store.Get(ctx, "catalog:children_1_active")
	assert.False(t, found)
	_, found, _ = store.Get(ctx, "catalog:children_2_all")
	assert.False(t, found)
	_, found, _ = store.Get(ctx, "catalog:statistics")
	assert.True(t, found)
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	// Arrange: room for two items only
	ctx := context.Background()
	store := NewMemoryStore(2, 1<<20, zap.NewNop())

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Minute))

	// Touch "a" so "b" becomes least recently used
	_, _, err := store.Get(ctx, "a")
	require.NoError(t, err)

	// Act
	require.NoError(t, store.Set(ctx, "c", []byte("3"), time.Minute))

	// Assert
	_, found, _ := store.Get(ctx, "b")
	assert.False(t, found, "least recently used entry should be evicted")
	_, found, _ = store.Get(ctx, "a")
	assert.True(t, found)
	_, found, _ = store.Get(ctx, "c")
	assert.True(t, found)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore()
	require.NoError(t, store.Set(ctx, "k1", []byte("abc"), time.Minute))

	value, _, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	value[0] = 'z'

	fresh, _, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), fresh)
}

func TestMatchPattern(t *testing.T) {
	assert.True(t, matchPattern("anything", "*"))
	assert.True(t, matchPattern("catalog:children_1", "catalog:children_*"))
	assert.True(t, matchPattern("x_suffix", "*_suffix"))
	assert.True(t, matchPattern("exact", "exact"))
	assert.False(t, matchPattern("catalog:statistics", "catalog:children_*"))
}
