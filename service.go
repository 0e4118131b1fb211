// Package kwcache is the distributed caching subsystem for the keyword
// research platform: a read-through/write-through layer in front of metered
// provider APIs (keyword metrics, LLM completions, embeddings) and internal
// compute, backed by a Redis-compatible remote store with in-process
// fallback.
package kwcache

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kwatlas/kwcache/cache"
	"github.com/kwatlas/kwcache/cachekey"
	"github.com/kwatlas/kwcache/config"
	"github.com/kwatlas/kwcache/facade"
	"github.com/kwatlas/kwcache/locks"
	"github.com/kwatlas/kwcache/logger"
	"github.com/kwatlas/kwcache/metrics"
	"github.com/kwatlas/kwcache/monitor"
	"github.com/kwatlas/kwcache/types"
	"github.com/kwatlas/kwcache/warming"
)

// Service is the composition root. It owns construction and lifecycle of
// every component; consumers receive it (or the facades it exposes) by
// dependency injection, never through package-level state.
type Service struct {
	config  *types.Config
	logger  types.Logger
	metrics *metrics.Manager

	store      *cache.Store
	cacheStore types.CacheStore
	locks      *locks.Manager
	scheduler  *warming.Scheduler
	runner     *warming.Runner
	monitor    *monitor.Monitor

	keys            *cachekey.Builder
	metricsCache    *facade.MetricsCache
	llmCache        *facade.LLMCache
	embeddingsCache *facade.EmbeddingsCache

	cancel  context.CancelFunc
	started int32
}

// New loads configuration from configPath (empty for defaults plus
// environment overrides) and wires the full subsystem.
func New(ctx context.Context, configPath string) (*Service, error) {
	cfg, err := config.NewLoader().Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

func NewWithConfig(ctx context.Context, cfg *types.Config) (*Service, error) {
	if cfg == nil {
		return nil, types.ErrConfigIsNil
	}

	log, err := logger.NewDefaultLogger(cfg.Logger)
	if err != nil {
		return nil, err
	}

	serviceCtx, cancel := context.WithCancel(ctx)

	store, err := cache.NewStore(serviceCtx, log, cfg.Redis, cfg.Cache)
	if err != nil {
		cancel()
		return nil, err
	}

	m := metrics.NewManager("kwcache")
	cacheStore := cache.NewInstrumentedStore(store, m)

	keys := cachekey.NewBuilder(cfg.Cache.KeyPrefix, cfg.Cache.MaxKeyLength)
	scheduler := warming.NewScheduler(log, cfg.Warming)

	s := &Service{
		config:          cfg,
		logger:          log,
		metrics:         m,
		store:           store,
		cacheStore:      cacheStore,
		locks:           locks.NewManager(store.Client(), log, cfg.Cache.KeyPrefix),
		scheduler:       scheduler,
		runner:          warming.NewRunner(serviceCtx, log, cfg.Warming, scheduler),
		monitor:         monitor.NewMonitor(serviceCtx, log, cfg.Monitoring, store, m),
		keys:            keys,
		metricsCache:    facade.NewMetricsCache(cacheStore, keys),
		llmCache:        facade.NewLLMCache(cacheStore, keys),
		embeddingsCache: facade.NewEmbeddingsCache(cacheStore, keys),
		cancel:          cancel,
	}

	return s, nil
}

func (s *Service) Start() error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return types.ErrServiceIsRunning
	}

	if err := s.cacheStore.Start(); err != nil {
		atomic.StoreInt32(&s.started, 0)
		return types.WrapError(err, "cache store start failed")
	}

	if s.config.Monitoring != nil && s.config.Monitoring.Enabled {
		if err := s.monitor.Start(); err != nil {
			s.logger.Error("monitor start failed", zap.Error(err))
		}
	}

	if s.config.Warming != nil && s.config.Warming.Enabled {
		if err := s.runner.Start(); err != nil {
			s.logger.Error("warming runner start failed", zap.Error(err))
		}
	}

	s.logger.Info("kwcache service started", zap.String("name", s.config.Name))
	return nil
}

func (s *Service) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.started, 1, 0) {
		return types.ErrServiceIsNotRunning
	}

	var firstErr error
	if err := s.runner.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.monitor.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.cacheStore.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.cancel()

	s.logger.Info("kwcache service stopped")
	return firstErr
}

func (s *Service) IsRunning() bool {
	return atomic.LoadInt32(&s.started) == 1
}

// Cache is the generic store for consumers whose payloads fall outside the
// typed facades.
func (s *Service) Cache() types.CacheStore { return s.cacheStore }

func (s *Service) Locks() types.LockManager { return s.locks }

func (s *Service) Keys() *cachekey.Builder { return s.keys }

func (s *Service) MetricsCache() *facade.MetricsCache { return s.metricsCache }

func (s *Service) LLMCache() *facade.LLMCache { return s.llmCache }

func (s *Service) EmbeddingsCache() *facade.EmbeddingsCache { return s.embeddingsCache }

func (s *Service) Metrics() *metrics.Manager { return s.metrics }

// RegisterWarmingStrategy adds a named strategy; call during startup,
// before the periodic runner fires.
func (s *Service) RegisterWarmingStrategy(strategy *types.WarmingStrategy) error {
	return s.scheduler.Register(strategy)
}

func (s *Service) AddAlertSink(sink types.AlertSink) {
	s.monitor.AddSink(sink)
}

// Administrative surface. Transport framing (HTTP, RPC, CLI) is the host
// service's choice; these define only the semantics.

func (s *Service) HealthCheck(ctx context.Context) types.CacheHealth {
	return s.cacheStore.HealthCheck(ctx)
}

func (s *Service) Stats() types.CacheStats {
	return s.cacheStore.GetStats()
}

func (s *Service) TriggerWarming(ctx context.Context, opts types.WarmOptions) (*types.WarmResult, error) {
	return s.scheduler.Warm(ctx, opts)
}

func (s *Service) ClearPattern(ctx context.Context, pattern string) int {
	return s.cacheStore.Clear(ctx, pattern)
}

func (s *Service) InvalidateTags(ctx context.Context, tags ...string) int {
	return s.cacheStore.InvalidateByTags(ctx, tags...)
}

func (s *Service) Report(window time.Duration) types.MonitorReport {
	return s.monitor.GenerateReport(window)
}
