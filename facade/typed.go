// Package facade wraps the generic cache store with strongly typed,
// per-integration views: domain key shapes, default TTLs, and invalidation
// tags in one place.
package facade

import (
	"context"
	"time"

	"github.com/kwatlas/kwcache/types"
)

// Typed is a generic view over the store for one value type. Each external
// API integration composes one so its payloads stay typed end to end
// instead of sharing an untyped blob store.
type Typed[V any] struct {
	store      types.CacheStore
	defaultTTL time.Duration
}

func NewTyped[V any](store types.CacheStore, defaultTTL time.Duration) *Typed[V] {
	return &Typed[V]{
		store:      store,
		defaultTTL: defaultTTL,
	}
}

func (t *Typed[V]) Get(ctx context.Context, key string) (V, bool) {
	var v V
	if !t.store.Get(ctx, key, &v) {
		var zero V
		return zero, false
	}
	return v, true
}

func (t *Typed[V]) Set(ctx context.Context, key string, value V, tags ...string) error {
	return t.store.Set(ctx, key, value, t.defaultTTL, tags...)
}

func (t *Typed[V]) SetWithTTL(ctx context.Context, key string, value V, ttl time.Duration, tags ...string) error {
	return t.store.Set(ctx, key, value, ttl, tags...)
}

func (t *Typed[V]) Delete(ctx context.Context, key string) error {
	return t.store.Delete(ctx, key)
}

// GetOrSet returns the cached value or computes, stores, and returns it.
// Compute errors pass through untouched; a failed cache write never fails
// the call.
func (t *Typed[V]) GetOrSet(ctx context.Context, key string, compute func(ctx context.Context) (V, error), tags ...string) (V, error) {
	if v, ok := t.Get(ctx, key); ok {
		return v, nil
	}

	v, err := compute(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	_ = t.Set(ctx, key, v, tags...)
	return v, nil
}

// GetBatch returns found values keyed by input key plus the list of missing
// keys, preserving the input order within missing.
func (t *Typed[V]) GetBatch(ctx context.Context, keys []string) (map[string]V, []string, error) {
	values := make([]V, len(keys))
	outs := make([]interface{}, len(keys))
	for i := range values {
		outs[i] = &values[i]
	}

	found, err := t.store.GetBatch(ctx, keys, outs)
	if err != nil {
		return nil, nil, err
	}

	result := make(map[string]V, len(keys))
	var missing []string
	for i, key := range keys {
		if found[i] {
			result[key] = values[i]
		} else {
			missing = append(missing, key)
		}
	}
	return result, missing, nil
}

func (t *Typed[V]) SetBatch(ctx context.Context, items map[string]V, tags ...string) {
	entries := make([]types.BatchEntry, 0, len(items))
	for key, value := range items {
		entries = append(entries, types.BatchEntry{
			Key:   key,
			Value: value,
			TTL:   t.defaultTTL,
			Tags:  tags,
		})
	}
	t.store.SetBatch(ctx, entries)
}

func (t *Typed[V]) InvalidateByTags(ctx context.Context, tags ...string) int {
	return t.store.InvalidateByTags(ctx, tags...)
}
