package facade

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Cached composes a plain compute function with the cache: a call first
// checks the cache, and on a miss computes, stores, and returns the value.
// Concurrent misses for the same key are collapsed into a single compute
// via singleflight, so one process never duplicates the same expensive
// call in flight.
func Cached[A any, V any](typed *Typed[V], keyFn func(arg A) string, compute func(ctx context.Context, arg A) (V, error), tags ...string) func(ctx context.Context, arg A) (V, error) {
	var group singleflight.Group

	return func(ctx context.Context, arg A) (V, error) {
		key := keyFn(arg)

		if v, ok := typed.Get(ctx, key); ok {
			return v, nil
		}

		result, err, _ := group.Do(key, func() (interface{}, error) {
			// a flight that queued behind the winner may find the value
			// already written
			if v, ok := typed.Get(ctx, key); ok {
				return v, nil
			}

			v, err := compute(ctx, arg)
			if err != nil {
				return nil, err
			}

			_ = typed.Set(ctx, key, v, tags...)
			return v, nil
		})
		if err != nil {
			var zero V
			return zero, err
		}
		return result.(V), nil
	}
}
