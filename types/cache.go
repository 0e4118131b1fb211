package types

import (
	"context"
	"time"
)

// CacheStore is the consumer-facing contract of the cache engine. Expected
// degraded conditions (miss, remote store down) are representable return
// values, not errors: Get reports found=false, Set falls through to the
// in-process fallback and still succeeds.
type CacheStore interface {
	LifecycleManager
	Get(ctx context.Context, key string, out interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error
	Delete(ctx context.Context, key string) error
	GetBatch(ctx context.Context, keys []string, outs []interface{}) ([]bool, error)
	SetBatch(ctx context.Context, entries []BatchEntry) []bool
	InvalidateByTags(ctx context.Context, tags ...string) int
	Clear(ctx context.Context, pattern string) int
	GetStats() CacheStats
	HealthCheck(ctx context.Context) CacheHealth
}

type BatchEntry struct {
	Key   string
	Value interface{}
	TTL   time.Duration
	Tags  []string
}

// CacheStats counters accumulate monotonically from process start.
type CacheStats struct {
	Hits           uint64        `json:"hits"`
	Misses         uint64        `json:"misses"`
	Sets           uint64        `json:"sets"`
	Deletes        uint64        `json:"deletes"`
	Errors         uint64        `json:"errors"`
	HitRate        float64       `json:"hit_rate"`
	AvgLatency     time.Duration `json:"avg_latency"`
	FallbackKeys   int           `json:"fallback_keys"`
	FallbackActive bool          `json:"fallback_active"`
}

type CacheHealth struct {
	Healthy         bool     `json:"healthy"`
	RemoteReachable bool     `json:"remote_reachable"`
	FallbackActive  bool     `json:"fallback_active"`
	Issues          []string `json:"issues,omitempty"`
}

// RemoteInfo is a snapshot of the remote store's own introspection data,
// sampled by the health monitor.
type RemoteInfo struct {
	UsedMemoryBytes   int64 `json:"used_memory_bytes"`
	PeakMemoryBytes   int64 `json:"peak_memory_bytes"`
	KeyCount          int64 `json:"key_count"`
	ConnectedClients  int64 `json:"connected_clients"`
}
