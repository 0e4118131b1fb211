package cache

import (
	"context"
	"time"

	"github.com/kwatlas/kwcache/metrics"
	"github.com/kwatlas/kwcache/types"
)

var durationBuckets = []float64{0.0001, 0.001, 0.01, 0.1, 1.0}

// NewInstrumentedStore wraps a store so every operation is mirrored into
// prometheus counters and duration histograms.
func NewInstrumentedStore(impl types.CacheStore, m *metrics.Manager) types.CacheStore {
	if m == nil {
		return impl
	}
	return &instrumentedStore{impl: impl, metrics: m}
}

type instrumentedStore struct {
	impl    types.CacheStore
	metrics *metrics.Manager
}

func (is *instrumentedStore) Get(ctx context.Context, key string, out interface{}) bool {
	start := time.Now()
	found := is.impl.Get(ctx, key, out)

	result := "miss"
	if found {
		result = "hit"
	}
	is.record("get", result, time.Since(start))
	return found
}

func (is *instrumentedStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	start := time.Now()
	err := is.impl.Set(ctx, key, value, ttl, tags...)
	is.record("set", resultOf(err), time.Since(start))
	return err
}

func (is *instrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := is.impl.Delete(ctx, key)
	is.record("delete", resultOf(err), time.Since(start))
	return err
}

func (is *instrumentedStore) GetBatch(ctx context.Context, keys []string, outs []interface{}) ([]bool, error) {
	start := time.Now()
	found, err := is.impl.GetBatch(ctx, keys, outs)
	is.record("get_batch", resultOf(err), time.Since(start))
	return found, err
}

func (is *instrumentedStore) SetBatch(ctx context.Context, entries []types.BatchEntry) []bool {
	start := time.Now()
	results := is.impl.SetBatch(ctx, entries)
	is.record("set_batch", "success", time.Since(start))
	return results
}

func (is *instrumentedStore) InvalidateByTags(ctx context.Context, tags ...string) int {
	start := time.Now()
	deleted := is.impl.InvalidateByTags(ctx, tags...)
	is.record("invalidate_tags", "success", time.Since(start))
	return deleted
}

func (is *instrumentedStore) Clear(ctx context.Context, pattern string) int {
	start := time.Now()
	deleted := is.impl.Clear(ctx, pattern)
	is.record("clear", "success", time.Since(start))
	return deleted
}

func (is *instrumentedStore) GetStats() types.CacheStats {
	return is.impl.GetStats()
}

func (is *instrumentedStore) HealthCheck(ctx context.Context) types.CacheHealth {
	return is.impl.HealthCheck(ctx)
}

func (is *instrumentedStore) Start() error {
	return is.impl.Start()
}

func (is *instrumentedStore) Stop() error {
	return is.impl.Stop()
}

func (is *instrumentedStore) IsRunning() bool {
	return is.impl.IsRunning()
}

func (is *instrumentedStore) record(operation, result string, duration time.Duration) {
	is.metrics.Counter("cache_operations_total", map[string]string{
		"operation": operation,
		"result":    result,
	}).Inc()

	is.metrics.Histogram("cache_operation_duration_seconds", durationBuckets, map[string]string{
		"operation": operation,
	}).Observe(duration.Seconds())
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
