package facade

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kwatlas/kwcache/cache"
	"github.com/kwatlas/kwcache/cachekey"
	"github.com/kwatlas/kwcache/logger"
	"github.com/kwatlas/kwcache/types"
)

func setupFacade(t *testing.T) (types.CacheStore, *cachekey.Builder) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	store, err := cache.NewStore(context.Background(),
		logger.NewZapWrapper(zap.NewNop()),
		&types.RedisConfig{
			Host:        mr.Host(),
			Port:        port,
			DialTimeout: time.Second,
		},
		&types.CacheConfig{
			Enabled:              true,
			KeyPrefix:            "test",
			DefaultTTL:           time.Hour,
			OperationTimeout:     time.Second,
			CompressionEnabled:   true,
			CompressionThreshold: 1024,
			FallbackTTL:          time.Minute,
			FallbackCleanup:      time.Minute,
		})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Stop() })

	return store, cachekey.NewBuilder("test", 250)
}

func TestTypedGetOrSet(t *testing.T) {
	store, _ := setupFacade(t)
	typed := NewTyped[string](store, time.Hour)
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (string, error) {
		calls++
		return "computed", nil
	}

	v, err := typed.GetOrSet(ctx, "k1", compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", v)
	assert.Equal(t, 1, calls)

	v, err = typed.GetOrSet(ctx, "k1", compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", v)
	assert.Equal(t, 1, calls)
}

func TestTypedGetOrSetComputeError(t *testing.T) {
	store, _ := setupFacade(t)
	typed := NewTyped[string](store, time.Hour)

	_, err := typed.GetOrSet(context.Background(), "k1", func(ctx context.Context) (string, error) {
		return "", errors.New("upstream down")
	})
	assert.Error(t, err)

	// a failed compute must not poison the cache
	_, ok := typed.Get(context.Background(), "k1")
	assert.False(t, ok)
}

func TestTypedGetBatch(t *testing.T) {
	store, _ := setupFacade(t)
	typed := NewTyped[int](store, time.Hour)
	ctx := context.Background()

	require.NoError(t, typed.Set(ctx, "a", 1))
	require.NoError(t, typed.Set(ctx, "c", 3))

	found, missing, err := typed.GetBatch(ctx, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "c": 3}, found)
	assert.Equal(t, []string{"b", "d"}, missing)
}

func TestMetricsCacheRoundTrip(t *testing.T) {
	store, keys := setupFacade(t)
	mc := NewMetricsCache(store, keys)
	ctx := context.Background()

	m := KeywordMetrics{Keyword: "seo tools", Volume: 12000, CPC: 4.2, Competition: 0.7, Difficulty: 61}
	require.NoError(t, mc.Set(ctx, "semrush", "US", "en", m))

	got, ok := mc.Get(ctx, "semrush", "US", "en", "seo tools")
	require.True(t, ok)
	assert.Equal(t, m, got)

	// a different market is a different entry
	_, ok = mc.Get(ctx, "semrush", "DE", "en", "seo tools")
	assert.False(t, ok)
}

func TestMetricsCacheBatch(t *testing.T) {
	store, keys := setupFacade(t)
	mc := NewMetricsCache(store, keys)
	ctx := context.Background()

	mc.SetBatch(ctx, "semrush", "US", "en", []KeywordMetrics{
		{Keyword: "crm software", Volume: 9000},
		{Keyword: "email marketing", Volume: 4000},
	})

	found, missing, err := mc.GetBatch(ctx, "semrush", "US", "en",
		[]string{"crm software", "seo audit", "email marketing"})
	require.NoError(t, err)

	assert.Len(t, found, 2)
	assert.Equal(t, int64(9000), found["crm software"].Volume)
	assert.Equal(t, []string{"seo audit"}, missing)
}

func TestMetricsCacheInvalidateMarket(t *testing.T) {
	store, keys := setupFacade(t)
	mc := NewMetricsCache(store, keys)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "semrush", "US", "en", KeywordMetrics{Keyword: "a"}))
	require.NoError(t, mc.Set(ctx, "semrush", "US", "en", KeywordMetrics{Keyword: "b"}))
	require.NoError(t, mc.Set(ctx, "semrush", "DE", "de", KeywordMetrics{Keyword: "c"}))

	deleted := mc.InvalidateMarket(ctx, "US")
	assert.Equal(t, 2, deleted)

	_, ok := mc.Get(ctx, "semrush", "US", "en", "a")
	assert.False(t, ok)
	_, ok = mc.Get(ctx, "semrush", "DE", "de", "c")
	assert.True(t, ok)
}

func TestLLMCacheGetOrGenerate(t *testing.T) {
	store, keys := setupFacade(t)
	lc := NewLLMCache(store, keys)
	ctx := context.Background()

	calls := 0
	generate := func(ctx context.Context) (LLMResponse, error) {
		calls++
		return LLMResponse{Model: "gpt-4o", Content: "keyword clusters"}, nil
	}

	resp, err := lc.GetOrGenerate(ctx, "gpt-4o", "cluster these keywords", generate)
	require.NoError(t, err)
	assert.Equal(t, "keyword clusters", resp.Content)

	resp, err = lc.GetOrGenerate(ctx, "gpt-4o", "cluster these keywords", generate)
	require.NoError(t, err)
	assert.Equal(t, "keyword clusters", resp.Content)
	assert.Equal(t, 1, calls)

	// same prompt under a different model is a separate entry
	_, ok := lc.Get(ctx, "gpt-4o-mini", "cluster these keywords")
	assert.False(t, ok)
}

func TestLLMCacheInvalidateModel(t *testing.T) {
	store, keys := setupFacade(t)
	lc := NewLLMCache(store, keys)
	ctx := context.Background()

	require.NoError(t, lc.Set(ctx, "gpt-4o", "p1", LLMResponse{Content: "r1"}))
	require.NoError(t, lc.Set(ctx, "gpt-4o", "p2", LLMResponse{Content: "r2"}))

	assert.Equal(t, 2, lc.InvalidateModel(ctx, "gpt-4o"))
	_, ok := lc.Get(ctx, "gpt-4o", "p1")
	assert.False(t, ok)
}

func TestEmbeddingsCacheBatch(t *testing.T) {
	store, keys := setupFacade(t)
	ec := NewEmbeddingsCache(store, keys)
	ctx := context.Background()

	ec.SetBatch(ctx, "text-embedding-3-small", map[string][]float32{
		"seo tools":    {0.1, 0.2, 0.3},
		"crm software": {0.4, 0.5, 0.6},
	})

	found, missing, err := ec.GetBatch(ctx, "text-embedding-3-small",
		[]string{"seo tools", "unseen text", "crm software"})
	require.NoError(t, err)

	assert.Len(t, found, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, found["seo tools"])
	assert.Equal(t, []string{"unseen text"}, missing)
}

func TestCachedSingleflight(t *testing.T) {
	store, _ := setupFacade(t)
	typed := NewTyped[string](store, time.Hour)

	var computes int32
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := Cached(typed,
		func(kw string) string { return "kw:" + kw },
		func(ctx context.Context, kw string) (string, error) {
			if atomic.AddInt32(&computes, 1) == 1 {
				close(started)
			}
			<-release
			return "volume for " + kw, nil
		})

	const callers = 10
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := fetch(context.Background(), "seo tools")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, "volume for seo tools", v)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))
}

func TestCachedServesFromCache(t *testing.T) {
	store, _ := setupFacade(t)
	typed := NewTyped[string](store, time.Hour)
	ctx := context.Background()

	var computes int32
	fetch := Cached(typed,
		func(kw string) string { return "kw:" + kw },
		func(ctx context.Context, kw string) (string, error) {
			atomic.AddInt32(&computes, 1)
			return "v", nil
		})

	for i := 0; i < 3; i++ {
		v, err := fetch(ctx, "same")
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))
}
