package biz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/contract-assistant/internal/model"
)

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func enabledCache(client goredis.UniversalClient) *QueryCache {
	return NewQueryCache(client, &QueryCacheConfig{Enabled: true, TTL: time.Minute, KeyPrefix: "test:query:"})
}

func TestQueryCache_SetGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := enabledCache(client)
	ctx := context.Background()

	got, err := cache.Get(ctx, "idx-1", "q")
	require.NoError(t, err)
	assert.Nil(t, got)

	want := &model.QueryResult{
		Question:        "q",
		Answer:          "a",
		RetrievedChunks: []model.Chunk{{ID: "0", Content: "c", Metadata: model.Metadata{Source: "x.pdf", Page: model.IntPtr(1)}}},
	}
	require.NoError(t, cache.Set(ctx, "idx-1", want))

	got, err = cache.Get(ctx, "idx-1", "q")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// 新索引不命中旧结果
	got, err = cache.Get(ctx, "idx-2", "q")
	require.NoError(t, err)
	assert.Nil(t, got)

	key := cache.key("idx-1", "q")
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestQueryCache_CorruptEntryRemoved(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := enabledCache(client)
	key := cache.key("idx", "q")
	require.NoError(t, mr.Set(key, "{not json"))

	_, err := cache.Get(context.Background(), "idx", "q")
	assert.Error(t, err)
	assert.False(t, mr.Exists(key))
}

func TestQueryCache_ClearAndStats(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := enabledCache(client)
	ctx := context.Background()
	require.NoError(t, mr.Set("other:key", "keep"))

	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Set(ctx, "idx", &model.QueryResult{Question: q, Answer: q}))
	}

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats["key_count"])

	n, err := cache.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, mr.Exists("other:key"))
}

func TestQueryCache_Disabled(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, cache := range []*QueryCache{nil, NewQueryCache(client, nil), NewQueryCache(nil, &QueryCacheConfig{Enabled: true})} {
		require.NoError(t, cache.Set(ctx, "idx", &model.QueryResult{Question: "q"}))
		got, err := cache.Get(ctx, "idx", "q")
		assert.NoError(t, err)
		assert.Nil(t, got)
		stats, err := cache.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, false, stats["enabled"])
	}
}

func TestQueryCache_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := enabledCache(client)
	mr.Close()

	got, err := cache.Get(context.Background(), "idx", "q")
	assert.Error(t, err)
	assert.Nil(t, got)
}
