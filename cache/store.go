package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kwatlas/kwcache/codec"
	"github.com/kwatlas/kwcache/types"
)

type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
	pingInterval       = 15 * time.Second
	scanBatchSize      = 500
)

// Store is the core cache engine: a remote Redis-compatible store with an
// in-process fallback map for degraded operation, a tag index for bulk
// invalidation, and shared statistics counters.
type Store struct {
	ctx        context.Context
	cancel     context.CancelFunc
	logger     types.Logger
	config     *types.CacheConfig
	client     redis.UniversalClient
	codec      *codec.Codec
	fallback   *fallbackMap
	stats      *statsCollector
	state      atomic.Int32
	started    int32
	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

func NewStore(ctx context.Context, logger types.Logger, redisConfig *types.RedisConfig, cacheConfig *types.CacheConfig) (*Store, error) {
	if cacheConfig == nil || !cacheConfig.Enabled {
		return nil, types.ErrCacheIsDisabled
	}
	if redisConfig == nil {
		return nil, types.ErrConfigIsNil
	}

	storeCtx, cancel := context.WithCancel(ctx)

	s := &Store{
		ctx:        storeCtx,
		cancel:     cancel,
		logger:     logger,
		config:     cacheConfig,
		client:     newRedisClient(redisConfig),
		codec:      codec.New(cacheConfig.CompressionEnabled, cacheConfig.CompressionThreshold),
		fallback:   newFallbackMap(cacheConfig.FallbackTTL),
		stats:      newStatsCollector(),
		shutdownCh: make(chan struct{}),
	}
	s.state.Store(int32(stateDisconnected))

	// remote unavailability at startup is a degradation, not a failure:
	// the store keeps serving through the fallback map and reconnects
	// in the background
	pingCtx, pingCancel := context.WithTimeout(storeCtx, redisConfig.DialTimeout)
	defer pingCancel()
	if err := s.client.Ping(pingCtx).Err(); err != nil {
		s.logger.Warn("remote store unreachable at startup, starting in fallback mode", zap.Error(err))
	} else {
		s.state.Store(int32(stateConnected))
	}

	return s, nil
}

func newRedisClient(config *types.RedisConfig) redis.UniversalClient {
	if len(config.ClusterNodes) > 0 {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        config.ClusterNodes,
			Password:     config.Password,
			PoolSize:     config.PoolSize,
			MinIdleConns: config.MinIdleConnections,
			DialTimeout:  config.DialTimeout,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		})
	}

	return redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConnections,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})
}

func (s *Store) Get(ctx context.Context, key string, out interface{}) bool {
	if key == "" {
		return false
	}

	start := time.Now()
	defer func() { s.stats.observeLatency(time.Since(start)) }()

	fullKey := s.fullKey(key)

	opCtx, cancel := s.opCtx(ctx)
	data, err := s.client.Get(opCtx, fullKey).Bytes()
	cancel()

	switch {
	case err == nil:
		if decodeErr := s.codec.Decode(data, out); decodeErr != nil {
			// corrupt payload is a miss, never a caller error
			s.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(decodeErr))
			s.deleteQuietly(fullKey)
			s.stats.recordMiss()
			return false
		}
		s.stats.recordHit()
		return true

	case types.IsError(err, redis.Nil):
		s.stats.recordMiss()
		return false

	default:
		s.stats.recordError()
		s.noteRemoteFailure(err)

		if data, ok := s.fallback.get(fullKey); ok {
			if decodeErr := s.codec.Decode(data, out); decodeErr == nil {
				s.stats.recordHit()
				return true
			}
			s.fallback.delete(fullKey)
		}
		s.stats.recordMiss()
		return false
	}
}

func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}
	if ttl <= 0 {
		ttl = s.config.DefaultTTL
	}

	start := time.Now()
	defer func() { s.stats.observeLatency(time.Since(start)) }()

	data, err := s.codec.Encode(value)
	if err != nil {
		return err
	}

	fullKey := s.fullKey(key)

	opCtx, cancel := s.opCtx(ctx)
	setErr := s.client.Set(opCtx, fullKey, data, ttl).Err()
	cancel()

	if setErr != nil {
		// the caller must never block on a cache write: degrade to the
		// fallback map and keep going
		s.stats.recordError()
		s.noteRemoteFailure(setErr)
		s.fallback.set(fullKey, data, ttl)
		s.stats.recordSet()
		return nil
	}

	if len(tags) > 0 {
		s.addTags(ctx, fullKey, tags, ttl)
	}

	s.stats.recordSet()
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	fullKey := s.fullKey(key)
	s.fallback.delete(fullKey)

	opCtx, cancel := s.opCtx(ctx)
	err := s.client.Del(opCtx, fullKey).Err()
	cancel()

	if err != nil {
		s.stats.recordError()
		s.noteRemoteFailure(err)
		return nil
	}

	s.stats.recordDelete()
	return nil
}

// GetBatch fetches keys in one pipeline round trip. The returned slice is
// aligned with keys; outs[i] receives the decoded value when found[i] is
// true. Each slot's outcome is counted independently in the stats.
func (s *Store) GetBatch(ctx context.Context, keys []string, outs []interface{}) ([]bool, error) {
	if len(keys) != len(outs) {
		return nil, types.ErrCacheBatchSizeMismatch
	}
	found := make([]bool, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	start := time.Now()
	defer func() { s.stats.observeLatency(time.Since(start)) }()

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(opCtx, s.fullKey(key))
	}

	if _, err := pipe.Exec(opCtx); err != nil && !types.IsError(err, redis.Nil) {
		s.stats.recordError()
		s.noteRemoteFailure(err)

		for i, key := range keys {
			if data, ok := s.fallback.get(s.fullKey(key)); ok {
				if s.codec.Decode(data, outs[i]) == nil {
					found[i] = true
					s.stats.recordHit()
					continue
				}
			}
			s.stats.recordMiss()
		}
		return found, nil
	}

	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			s.stats.recordMiss()
			continue
		}
		if decodeErr := s.codec.Decode(data, outs[i]); decodeErr != nil {
			s.logger.Warn("dropping corrupt cache entry", zap.String("key", keys[i]), zap.Error(decodeErr))
			s.deleteQuietly(s.fullKey(keys[i]))
			s.stats.recordMiss()
			continue
		}
		found[i] = true
		s.stats.recordHit()
	}

	return found, nil
}

// SetBatch writes entries in one pipeline round trip and reports per-slot
// success. Slots that cannot reach the remote store land in the fallback
// map and still count as success; only unencodable values fail a slot.
func (s *Store) SetBatch(ctx context.Context, entries []types.BatchEntry) []bool {
	results := make([]bool, len(entries))
	if len(entries) == 0 {
		return results
	}

	start := time.Now()
	defer func() { s.stats.observeLatency(time.Since(start)) }()

	encoded := make([][]byte, len(entries))
	for i, entry := range entries {
		data, err := s.codec.Encode(entry.Value)
		if err != nil {
			s.logger.Warn("skipping unencodable batch entry", zap.String("key", entry.Key), zap.Error(err))
			s.stats.recordError()
			continue
		}
		encoded[i] = data
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StatusCmd, len(entries))
	for i, entry := range entries {
		if encoded[i] == nil {
			continue
		}
		ttl := entry.TTL
		if ttl <= 0 {
			ttl = s.config.DefaultTTL
		}
		cmds[i] = pipe.Set(opCtx, s.fullKey(entry.Key), encoded[i], ttl)
	}

	_, execErr := pipe.Exec(opCtx)
	if execErr != nil {
		s.noteRemoteFailure(execErr)
	}

	for i, entry := range entries {
		if encoded[i] == nil {
			continue
		}

		ttl := entry.TTL
		if ttl <= 0 {
			ttl = s.config.DefaultTTL
		}

		if cmds[i].Err() != nil {
			s.stats.recordError()
			s.fallback.set(s.fullKey(entry.Key), encoded[i], ttl)
		} else if len(entry.Tags) > 0 {
			s.addTags(ctx, s.fullKey(entry.Key), entry.Tags, ttl)
		}

		results[i] = true
		s.stats.recordSet()
	}

	return results
}

func (s *Store) Exists(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}

	fullKey := s.fullKey(key)

	opCtx, cancel := s.opCtx(ctx)
	n, err := s.client.Exists(opCtx, fullKey).Result()
	cancel()

	if err != nil {
		_, ok := s.fallback.get(fullKey)
		return ok
	}
	return n > 0
}

// TTL reports the remaining lifetime of a key. ok is false for missing
// keys and when the remote store cannot answer.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, bool) {
	if key == "" {
		return 0, false
	}

	opCtx, cancel := s.opCtx(ctx)
	ttl, err := s.client.TTL(opCtx, s.fullKey(key)).Result()
	cancel()

	if err != nil || ttl < 0 {
		return 0, false
	}
	return ttl, true
}

// Clear deletes keys matching the glob pattern under the store's prefix,
// from both the remote store and the fallback map. An empty pattern flushes
// everything under the prefix.
func (s *Store) Clear(ctx context.Context, pattern string) int {
	match := s.fullKey("*")
	fallbackPattern := ""
	if pattern != "" {
		match = s.fullKey(pattern)
		fallbackPattern = match
	}

	deleted := s.fallback.clear(fallbackPattern)
	deleted += s.scanDelete(ctx, match)
	return deleted
}

func (s *Store) scanDelete(ctx context.Context, match string) int {
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(opCtx, cursor, match, scanBatchSize).Result()
		if err != nil {
			s.stats.recordError()
			s.noteRemoteFailure(err)
			return deleted
		}

		if len(keys) > 0 {
			n, err := s.client.Del(opCtx, keys...).Result()
			if err != nil {
				s.stats.recordError()
			} else {
				deleted += int(n)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted
}

func (s *Store) GetStats() types.CacheStats {
	return s.stats.snapshot(s.fallback.len(), s.connState() != stateConnected)
}

func (s *Store) HealthCheck(ctx context.Context) types.CacheHealth {
	health := types.CacheHealth{
		RemoteReachable: false,
		FallbackActive:  s.connState() != stateConnected,
	}

	opCtx, cancel := s.opCtx(ctx)
	err := s.client.Ping(opCtx).Err()
	cancel()

	health.RemoteReachable = err == nil
	if err != nil {
		health.Issues = append(health.Issues, "remote store unreachable: "+err.Error())
	}

	// rates only mean something over a real sample
	if s.stats.lookups() >= 100 {
		if rate := s.stats.hitRate(); rate < 0.5 {
			health.Issues = append(health.Issues, fmt.Sprintf("low hit rate: %.2f", rate))
		}
	}
	if rate := s.stats.errorRate(); rate > 0.1 {
		health.Issues = append(health.Issues, fmt.Sprintf("high error rate: %.2f", rate))
	}

	health.Healthy = health.RemoteReachable && len(health.Issues) == 0
	return health
}

// RemoteInfo samples the remote store's own introspection counters for the
// health monitor.
func (s *Store) RemoteInfo(ctx context.Context) (types.RemoteInfo, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	var info types.RemoteInfo

	if err := s.client.Ping(opCtx).Err(); err != nil {
		return info, types.WrapError(err, "remote store unreachable")
	}

	// introspection fields are best-effort: servers without full INFO
	// support still report reachable with zeroed gauges
	if memory, err := s.client.Info(opCtx, "memory").Result(); err == nil {
		info.UsedMemoryBytes = parseInfoInt(memory, "used_memory")
		info.PeakMemoryBytes = parseInfoInt(memory, "used_memory_peak")
	}

	if clients, err := s.client.Info(opCtx, "clients").Result(); err == nil {
		info.ConnectedClients = parseInfoInt(clients, "connected_clients")
	}

	if keys, err := s.client.DBSize(opCtx).Result(); err == nil {
		info.KeyCount = keys
	}

	return info, nil
}

func parseInfoInt(info, field string) int64 {
	for _, line := range strings.Split(info, "\r\n") {
		if value, ok := strings.CutPrefix(line, field+":"); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err == nil {
				return n
			}
		}
	}
	return 0
}

func (s *Store) Start() error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return nil
	}

	s.wg.Add(2)
	go s.reconnectLoop()
	go s.janitorLoop()

	s.logger.Info("cache store started",
		zap.String("key_prefix", s.config.KeyPrefix),
		zap.Bool("compression", s.config.CompressionEnabled))
	return nil
}

func (s *Store) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.started, 1, 0) {
		return nil
	}

	close(s.shutdownCh)
	s.cancel()
	s.wg.Wait()

	s.fallback.clear("")

	if err := s.client.Close(); err != nil {
		s.logger.Error("failed to close remote store client", zap.Error(err))
		return types.WrapError(err, "failed to close remote store client")
	}

	s.logger.Info("cache store stopped")
	return nil
}

func (s *Store) IsRunning() bool {
	return atomic.LoadInt32(&s.started) == 1
}

// reconnectLoop drives the disconnected -> connecting -> connected state
// machine with capped exponential backoff while the remote store is down.
func (s *Store) reconnectLoop() {
	defer s.wg.Done()

	delay := pingInterval
	backoff := reconnectBaseDelay

	for {
		select {
		case <-s.shutdownCh:
			return
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}

		pingCtx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
		err := s.client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			if s.connState() != stateConnected {
				s.logger.Info("remote store connection restored")
			}
			s.state.Store(int32(stateConnected))
			delay = pingInterval
			backoff = reconnectBaseDelay
			continue
		}

		s.state.Store(int32(stateConnecting))
		s.logger.Warn("remote store unreachable, retrying",
			zap.Duration("backoff", backoff), zap.Error(err))

		delay = backoff
		backoff *= 2
		if backoff > reconnectMaxDelay {
			backoff = reconnectMaxDelay
		}
	}
}

func (s *Store) janitorLoop() {
	defer s.wg.Done()

	interval := s.config.FallbackCleanup
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.fallback.purgeExpired(); removed > 0 {
				s.logger.Debug("purged expired fallback entries", zap.Int("removed", removed))
			}
		case <-s.shutdownCh:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Store) connState() connState {
	return connState(s.state.Load())
}

func (s *Store) noteRemoteFailure(err error) {
	if s.connState() == stateConnected {
		s.logger.Warn("remote store operation failed, serving from fallback", zap.Error(err))
	}
	s.state.Store(int32(stateDisconnected))
}

func (s *Store) deleteQuietly(fullKey string) {
	opCtx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()
	_ = s.client.Del(opCtx, fullKey).Err()
}

func (s *Store) fullKey(key string) string {
	if s.config.KeyPrefix != "" {
		return s.config.KeyPrefix + ":" + key
	}
	return key
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.OperationTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if ctx == nil {
		ctx = s.ctx
	}
	return context.WithTimeout(ctx, timeout)
}

// Client exposes the underlying redis client for collaborators that share
// the store's connection pool (lock manager, tag index, monitor).
func (s *Store) Client() redis.UniversalClient {
	return s.client
}
