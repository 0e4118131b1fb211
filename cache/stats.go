package cache

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/kwatlas/kwcache/types"
)

// Smoothing factor for the rolling average latency.
const latencyAlpha = 0.1

type statsCollector struct {
	hits    atomic.Uint64
	misses  atomic.Uint64
	sets    atomic.Uint64
	deletes atomic.Uint64
	errors  atomic.Uint64

	// exponential moving average of op latency, stored as float64 bits
	// of nanoseconds so it can be updated lock-free
	latencyBits atomic.Uint64
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

func (s *statsCollector) recordHit()    { s.hits.Add(1) }
func (s *statsCollector) recordMiss()   { s.misses.Add(1) }
func (s *statsCollector) recordSet()    { s.sets.Add(1) }
func (s *statsCollector) recordDelete() { s.deletes.Add(1) }
func (s *statsCollector) recordError()  { s.errors.Add(1) }

func (s *statsCollector) observeLatency(d time.Duration) {
	sample := float64(d.Nanoseconds())
	for {
		old := s.latencyBits.Load()
		cur := math.Float64frombits(old)

		next := sample
		if cur != 0 {
			next = cur + latencyAlpha*(sample-cur)
		}

		if s.latencyBits.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

func (s *statsCollector) hitRate() float64 {
	hits := s.hits.Load()
	total := hits + s.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (s *statsCollector) errorRate() float64 {
	errors := s.errors.Load()
	total := s.hits.Load() + s.misses.Load() + s.sets.Load() + s.deletes.Load()
	if total == 0 {
		return 0
	}
	return float64(errors) / float64(total)
}

func (s *statsCollector) lookups() uint64 {
	return s.hits.Load() + s.misses.Load()
}

func (s *statsCollector) snapshot(fallbackKeys int, fallbackActive bool) types.CacheStats {
	return types.CacheStats{
		Hits:           s.hits.Load(),
		Misses:         s.misses.Load(),
		Sets:           s.sets.Load(),
		Deletes:        s.deletes.Load(),
		Errors:         s.errors.Load(),
		HitRate:        s.hitRate(),
		AvgLatency:     time.Duration(math.Float64frombits(s.latencyBits.Load())),
		FallbackKeys:   fallbackKeys,
		FallbackActive: fallbackActive,
	}
}
