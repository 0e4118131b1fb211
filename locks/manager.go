// Package locks provides a distributed mutual-exclusion primitive whose
// state lives in the shared remote store, valid across processes.
package locks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kwatlas/kwcache/types"
)

const lockNamespace = "lock"

// releaseScript deletes the lock only when the stored token matches the
// caller's. A read-then-delete would race with expiry and free another
// holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type Manager struct {
	client    redis.UniversalClient
	logger    types.Logger
	keyPrefix string
}

func NewManager(client redis.UniversalClient, logger types.Logger, keyPrefix string) *Manager {
	return &Manager{
		client:    client,
		logger:    logger,
		keyPrefix: keyPrefix,
	}
}

// Acquire attempts a set-if-not-exists with expiry. It returns (nil, nil)
// when the lock is held by someone else and also when the remote store is
// unreachable: a process-local lock is meaningless across machines, so
// locking degrades to "unavailable" rather than to the fallback map.
// Callers should treat a nil lock as "someone else is likely working on
// this" and poll or recompute without the lock.
func (m *Manager) Acquire(ctx context.Context, lockKey string, ttl time.Duration) (*types.Lock, error) {
	if lockKey == "" {
		return nil, types.ErrLockKeyEmpty
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	token := uuid.NewString()
	fullKey := m.fullKey(lockKey)

	ok, err := m.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		m.logger.Warn("lock acquisition unavailable", zap.String("lock", lockKey), zap.Error(err))
		return nil, nil
	}
	if !ok {
		return nil, nil
	}

	return &types.Lock{
		Key:       lockKey,
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// Release frees the lock only when the presented token still matches.
// Returns false when the lock expired, was taken over, or the remote store
// is unreachable.
func (m *Manager) Release(ctx context.Context, lock *types.Lock) bool {
	if lock == nil || lock.Key == "" || lock.Token == "" {
		return false
	}

	n, err := releaseScript.Run(ctx, m.client, []string{m.fullKey(lock.Key)}, lock.Token).Int()
	if err != nil {
		m.logger.Warn("lock release failed", zap.String("lock", lock.Key), zap.Error(err))
		return false
	}
	return n == 1
}

// WithLock runs fn while holding the lock and releases it afterwards. The
// returned bool reports whether the lock was acquired; fn is not run when
// it was not.
func (m *Manager) WithLock(ctx context.Context, lockKey string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	lock, err := m.Acquire(ctx, lockKey, ttl)
	if err != nil {
		return false, err
	}
	if lock == nil {
		return false, nil
	}

	defer func() {
		if !m.Release(ctx, lock) {
			m.logger.Debug("lock already gone at release", zap.String("lock", lockKey))
		}
	}()

	return true, fn(ctx)
}

func (m *Manager) fullKey(lockKey string) string {
	if m.keyPrefix != "" {
		return m.keyPrefix + ":" + lockNamespace + ":" + lockKey
	}
	return lockNamespace + ":" + lockKey
}
