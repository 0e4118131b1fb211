package warming

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kwatlas/kwcache/types"
)

// Runner re-invokes the scheduler on a fixed interval. A failed scheduled
// run is logged, never fatal.
type Runner struct {
	ctx       context.Context
	cancel    context.CancelFunc
	logger    types.Logger
	config    *types.WarmingConfig
	scheduler *Scheduler
	cron      *cron.Cron
	started   int32
}

func NewRunner(ctx context.Context, logger types.Logger, config *types.WarmingConfig, scheduler *Scheduler) *Runner {
	runnerCtx, cancel := context.WithCancel(ctx)

	return &Runner{
		ctx:       runnerCtx,
		cancel:    cancel,
		logger:    logger,
		config:    config,
		scheduler: scheduler,
		cron: cron.New(
			cron.WithChain(cron.Recover(cronLogger{logger: logger})),
		),
	}
}

func (r *Runner) Start() error {
	if r.config == nil || !r.config.Enabled {
		return types.ErrWarmingIsDisabled
	}
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return nil
	}

	interval := r.config.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", interval), r.runOnce)
	if err != nil {
		atomic.StoreInt32(&r.started, 0)
		return types.WrapError(err, "failed to schedule warming job")
	}

	r.cron.Start()
	r.logger.Info("warming runner started", zap.Duration("interval", interval))
	return nil
}

func (r *Runner) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.started, 1, 0) {
		return nil
	}

	stopCtx := r.cron.Stop()
	r.cancel()

	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		r.logger.Warn("warming runner shutdown timeout")
	}

	r.logger.Info("warming runner stopped")
	return nil
}

func (r *Runner) IsRunning() bool {
	return atomic.LoadInt32(&r.started) == 1
}

func (r *Runner) runOnce() {
	result, err := r.scheduler.Warm(r.ctx, types.WarmOptions{
		MaxTime: r.config.MaxTime,
		MaxCost: r.config.MaxCostDollars,
	})
	if err != nil {
		if types.IsError(err, types.ErrWarmingInProgress) {
			r.logger.Debug("skipping scheduled warming, previous run still active")
			return
		}
		r.logger.Error("scheduled warming run failed", zap.Error(err))
		return
	}

	if !result.Success {
		r.logger.Warn("scheduled warming run had failing strategies",
			zap.Float64("total_cost", result.TotalCost),
			zap.Duration("total_time", result.TotalTime))
	}
}

type cronLogger struct {
	logger types.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
