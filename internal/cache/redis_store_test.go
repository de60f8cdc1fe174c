package cache

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

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "catalog:", zap.NewNop()), mr
}

func TestRedisStore_SetGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute))

	value, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), value)
}

func TestRedisStore_GetMiss(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	_, found, err := store.Get(ctx, "absent")

	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)
	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute))

	removed, err := store.Delete(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRedisStore_DeleteTagRemovesGroup(t *testing.T) {
	// Arrange: two entries in the shard group, one outside it
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	require.NoError(t, store.SetTagged(ctx, "catalog:breadcrumbs_2", []byte("a"), time.Minute, "tree", "shard_1"))
	require.NoError(t, store.SetTagged(ctx, "catalog:children_1_active", []byte("b"), time.Minute, "tree", "shard_1"))
	require.NoError(t, store.SetTagged(ctx, "catalog:children_9_active", []byte("c"), time.Minute, "tree", "shard_9"))

	// Act
	require.NoError(t, store.DeleteTag(ctx, "shard_1"))

	// Assert
	_, found, _ := store.Get(ctx, "catalog:breadcrumbs_2")
	assert.False(t, found)
	_, found, _ = store.Get(ctx, "catalog:children_1_active")
	assert.False(t, found)
	_, found, _ = store.Get(ctx, "catalog:children_9_active")
	assert.True(t, found, "entries of other shards must survive")
}

func TestRedisStore_DeleteTreeTagClearsEverything(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	require.NoError(t, store.SetTagged(ctx, "catalog:tree_active", []byte("a"), time.Minute, "tree"))
	require.NoError(t, store.SetTagged(ctx, "catalog:children_1_all", []byte("b"), time.Minute, "tree", "shard_1"))

	require.NoError(t, store.DeleteTag(ctx, "tree"))

	_, found, _ := store.Get(ctx, "catalog:tree_active")
	assert.False(t, found)
	_, found, _ = store.Get(ctx, "catalog:children_1_all")
	assert.False(t, found)
}

func TestRedisStore_DeleteTagEmptyGroup(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	assert.NoError(t, store.DeleteTag(ctx, "shard_404"))
}
