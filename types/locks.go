package types

import (
	"context"
	"time"
)

// LockManager is a distributed mutual-exclusion primitive whose state lives
// in the shared remote store. Acquire returns (nil, nil) both when another
// holder is active and when the remote store is unreachable: a local-only
// lock would be meaningless across processes, so locking degrades to
// "unavailable" rather than to the fallback map.
type LockManager interface {
	Acquire(ctx context.Context, lockKey string, ttl time.Duration) (*Lock, error)
	Release(ctx context.Context, lock *Lock) bool
	WithLock(ctx context.Context, lockKey string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

type Lock struct {
	Key       string    `json:"key"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
