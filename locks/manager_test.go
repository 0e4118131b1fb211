package locks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kwatlas/kwcache/logger"
	"github.com/kwatlas/kwcache/types"
)

func setupManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewManager(client, logger.NewZapWrapper(zap.NewNop()), "test"), mr
}

func TestAcquireRelease(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	lock, err := m.Acquire(ctx, "scoring:run42", 30*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.NotEmpty(t, lock.Token)

	assert.True(t, m.Release(ctx, lock))

	// released lock can be re-acquired
	again, err := m.Acquire(ctx, "scoring:run42", 30*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, again)
}

func TestAcquireHeldReturnsNil(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	first, err := m.Acquire(ctx, "clustering:run7", 30*time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := m.Acquire(ctx, "clustering:run7", 30*time.Second)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := m.Acquire(ctx, "contended", 30*time.Second)
			if err == nil && lock != nil {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
}

func TestReleaseWrongTokenKeepsLock(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	lock, err := m.Acquire(ctx, "export:run1", 30*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lock)

	forged := &types.Lock{Key: lock.Key, Token: "not-the-token"}
	assert.False(t, m.Release(ctx, forged))

	// the real holder can still release
	assert.True(t, m.Release(ctx, lock))
}

func TestLockExpiresByTTL(t *testing.T) {
	m, mr := setupManager(t)
	ctx := context.Background()

	lock, err := m.Acquire(ctx, "short", time.Second)
	require.NoError(t, err)
	require.NotNil(t, lock)

	mr.FastForward(1100 * time.Millisecond)

	again, err := m.Acquire(ctx, "short", time.Second)
	require.NoError(t, err)
	assert.NotNil(t, again)

	// the stale holder's release must not free the new holder's lock
	assert.False(t, m.Release(ctx, lock))
}

func TestAcquireRemoteDownDegrades(t *testing.T) {
	m, mr := setupManager(t)
	ctx := context.Background()

	mr.Close()

	lock, err := m.Acquire(ctx, "anything", time.Second)
	assert.NoError(t, err)
	assert.Nil(t, lock)
}

func TestWithLock(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	ran := false
	acquired, err := m.WithLock(ctx, "job", time.Minute, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, ran)

	// lock is released after fn returns
	lock, err := m.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, lock)
}

func TestWithLockNotAcquired(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	lock, err := m.Acquire(ctx, "busy", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lock)

	acquired, err := m.WithLock(ctx, "busy", time.Minute, func(ctx context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestAcquireEmptyKey(t *testing.T) {
	m, _ := setupManager(t)

	_, err := m.Acquire(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, types.ErrLockKeyEmpty)
}
