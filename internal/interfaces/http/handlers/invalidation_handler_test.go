package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalog-backend/internal/cache"
	"catalog-backend/internal/domain/category"
	"catalog-backend/internal/invalidation"
	"catalog-backend/internal/observability"
	"catalog-backend/internal/queue"
	"catalog-backend/internal/service/catalog"
)

type invalidationFixture struct {
	server  *httptest.Server
	backend *cache.MemoryStore
	store   *cache.TreeStore
}

func newInvalidationServer(t *testing.T) *invalidationFixture {
	t.Helper()

	source := catalog.NewStaticSource(
		&category.Node{ID: 1, Name: "electronics", Status: category.StatusActive},
		&category.Node{ID: 2, ParentID: int64Ptr(1), RootID: 1, Depth: 1, Name: "phones", Status: category.StatusActive},
		&category.Node{ID: 3, Name: "clothing", Status: category.StatusActive},
	)

	backend := cache.NewMemoryStore(1024, 1<<20, zap.NewNop())
	store, err := cache.NewTreeStore(backend, cache.NewKeys("c:"), zap.NewNop())
	require.NoError(t, err)

	resolver := category.NewRootResolver(source, 30*time.Second, zap.NewNop())
	t.Cleanup(resolver.Stop)

	metrics := observability.NewCollector("test", 64, 0, zap.NewNop())
	scheduler := invalidation.NewDebounceScheduler(
		queue.NewMemoryLocker(), queue.NewMemoryQueue(),
		2*time.Second, 5*time.Second, "c:", metrics, zap.NewNop())
	fallback := invalidation.NewFallbackPolicy(scheduler, metrics, zap.NewNop())
	aggregator := invalidation.NewAggregator(resolver, store, fallback, metrics, zap.NewNop())

	server := httptest.NewServer(NewInvalidationHandler(aggregator, zap.NewNop()).Routes())
	t.Cleanup(server.Close)

	return &invalidationFixture{server: server, backend: backend, store: store}
}

func TestPostInvalidations_ClearsAffectedShards(t *testing.T) {
	// Arrange: warm entries for the shard of node 2 and an unrelated shard
	ctx := context.Background()
	f := newInvalidationServer(t)
	require.NoError(t, f.backend.Set(ctx, "c:tree_shard_active_1", []byte("v"), time.Minute))
	require.NoError(t, f.backend.Set(ctx, "c:tree_active", []byte("v"), time.Minute))
	require.NoError(t, f.backend.Set(ctx, "c:tree_shard_active_3", []byte("v"), time.Minute))

	body, err := json.Marshal(map[string]any{
		"changes": []map[string]any{
			{"node": map[string]any{"id": 2, "parent_id": 1}},
		},
	})
	require.NoError(t, err)

	// Act
	resp, err := http.Post(f.server.URL+"/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	// Assert
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out struct {
		RootIDs []int64 `json:"root_ids"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []int64{1}, out.RootIDs)

	_, found, _ := f.backend.Get(ctx, "c:tree_shard_active_1")
	assert.False(t, found)
	_, found, _ = f.backend.Get(ctx, "c:tree_active")
	assert.False(t, found)
	_, found, _ = f.backend.Get(ctx, "c:tree_shard_active_3")
	assert.True(t, found, "unrelated shards stay warm")
}

func TestPostInvalidations_MoveReportsBothRoots(t *testing.T) {
	f := newInvalidationServer(t)

	body, err := json.Marshal(map[string]any{
		"changes": []map[string]any{
			{"node": map[string]any{"id": 2, "parent_id": 3}, "previous_root_id": 1},
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+"/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out struct {
		RootIDs []int64 `json:"root_ids"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []int64{1, 3}, out.RootIDs)
}

func TestPostInvalidations_RejectsMalformedBody(t *testing.T) {
	f := newInvalidationServer(t)

	resp, err := http.Post(f.server.URL+"/", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
