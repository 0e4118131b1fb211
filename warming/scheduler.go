// Package warming pre-populates the cache with named strategies under time
// and cost budgets.
package warming

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kwatlas/kwcache/types"
)

type Scheduler struct {
	logger     types.Logger
	config     *types.WarmingConfig
	mu         sync.RWMutex
	strategies map[string]*types.WarmingStrategy
	running    int32
}

func NewScheduler(logger types.Logger, config *types.WarmingConfig) *Scheduler {
	if config == nil {
		config = &types.WarmingConfig{}
	}
	return &Scheduler{
		logger:     logger,
		config:     config,
		strategies: make(map[string]*types.WarmingStrategy),
	}
}

// Register adds a strategy at startup. Strategies are static; registering
// a duplicate name is a programmer error.
func (s *Scheduler) Register(strategy *types.WarmingStrategy) error {
	if strategy == nil || strategy.Run == nil {
		return types.ErrWarmingStrategyIsNil
	}
	if strategy.Name == "" {
		return types.Errorf(types.ErrWarmingStrategyIsNil, "strategy has no name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.strategies[strategy.Name]; exists {
		return types.Errorf(types.ErrWarmingStrategyExists, "name: %s", strategy.Name)
	}
	s.strategies[strategy.Name] = strategy
	return nil
}

func (s *Scheduler) Strategies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.strategies))
	for name := range s.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Warm executes the selected strategies sequentially in ascending priority
// order. A strategy whose estimate would exceed the remaining time or cost
// budget is skipped, never aborted mid-run; a failing strategy is captured
// in its result and does not stop the remaining ones. Only one run may be
// in progress per process.
func (s *Scheduler) Warm(ctx context.Context, opts types.WarmOptions) (*types.WarmResult, error) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return nil, types.ErrWarmingInProgress
	}
	defer atomic.StoreInt32(&s.running, 0)

	selected, err := s.selectStrategies(opts.Strategies)
	if err != nil {
		return nil, err
	}

	maxTime := opts.MaxTime
	if maxTime <= 0 {
		maxTime = s.config.MaxTime
	}
	maxCost := opts.MaxCost
	if maxCost <= 0 {
		maxCost = s.config.MaxCostDollars
	}

	result := &types.WarmResult{
		Results: make([]types.StrategyResult, 0, len(selected)),
		Success: true,
	}
	start := time.Now()

	for _, strategy := range selected {
		elapsed := time.Since(start)

		if maxTime > 0 && elapsed+strategy.EstimatedDuration > maxTime {
			result.Results = append(result.Results, types.StrategyResult{
				Name:       strategy.Name,
				Skipped:    true,
				SkipReason: fmt.Sprintf("time budget: %s elapsed of %s", elapsed.Round(time.Millisecond), maxTime),
			})
			continue
		}

		if maxCost > 0 && result.TotalCost+strategy.EstimatedCost > maxCost {
			result.Results = append(result.Results, types.StrategyResult{
				Name:       strategy.Name,
				Skipped:    true,
				SkipReason: fmt.Sprintf("cost budget: $%.2f spent of $%.2f", result.TotalCost, maxCost),
			})
			continue
		}

		if opts.DryRun {
			result.Results = append(result.Results, types.StrategyResult{
				Name:    strategy.Name,
				Success: true,
				DryRun:  true,
				Cost:    strategy.EstimatedCost,
			})
			result.TotalCost += strategy.EstimatedCost
			continue
		}

		sr := s.execute(ctx, strategy)
		result.Results = append(result.Results, sr)
		result.TotalCost += sr.Cost
		if !sr.Success {
			result.Success = false
		}
	}

	result.TotalTime = time.Since(start)

	s.logger.Info("warming run finished",
		zap.Duration("total_time", result.TotalTime),
		zap.Float64("total_cost", result.TotalCost),
		zap.Int("strategies", len(result.Results)),
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("success", result.Success))

	return result, nil
}

// execute fault-isolates one strategy: errors and panics are captured into
// its result.
func (s *Scheduler) execute(ctx context.Context, strategy *types.WarmingStrategy) (sr types.StrategyResult) {
	sr.Name = strategy.Name
	start := time.Now()

	defer func() {
		sr.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			sr.Success = false
			sr.Error = fmt.Sprintf("panic: %v", rec)
			s.logger.Error("warming strategy panicked",
				zap.String("strategy", strategy.Name), zap.Any("panic", rec))
		}
	}()

	items, cost, err := strategy.Run(ctx)
	sr.Items = items
	sr.Cost = cost
	if err != nil {
		sr.Error = err.Error()
		s.logger.Warn("warming strategy failed",
			zap.String("strategy", strategy.Name), zap.Error(err))
		return sr
	}

	sr.Success = true
	return sr
}

// selectStrategies resolves the requested names (all when empty) sorted by
// ascending priority. An unknown name is a programmer error.
func (s *Scheduler) selectStrategies(names []string) ([]*types.WarmingStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var selected []*types.WarmingStrategy
	if len(names) == 0 {
		selected = make([]*types.WarmingStrategy, 0, len(s.strategies))
		for _, strategy := range s.strategies {
			selected = append(selected, strategy)
		}
	} else {
		selected = make([]*types.WarmingStrategy, 0, len(names))
		for _, name := range names {
			strategy, ok := s.strategies[name]
			if !ok {
				return nil, types.Errorf(types.ErrWarmingStrategyUnknown, "name: %s", name)
			}
			selected = append(selected, strategy)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Priority < selected[j].Priority
	})
	return selected, nil
}

func (s *Scheduler) IsWarming() bool {
	return atomic.LoadInt32(&s.running) == 1
}
