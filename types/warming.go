package types

import (
	"context"
	"time"
)

type WarmingScheduler interface {
	Register(strategy *WarmingStrategy) error
	Warm(ctx context.Context, opts WarmOptions) (*WarmResult, error)
	Strategies() []string
}

// WarmingStrategy pre-populates one slice of the cache. Run reports how many
// entries it wrote and the metered API cost it incurred.
type WarmingStrategy struct {
	Name              string
	Priority          int
	EstimatedDuration time.Duration
	EstimatedCost     float64
	Run               func(ctx context.Context) (items int, cost float64, err error)
}

type WarmOptions struct {
	Strategies []string      `json:"strategies,omitempty"`
	MaxTime    time.Duration `json:"max_time,omitempty"`
	MaxCost    float64       `json:"max_cost,omitempty"`
	DryRun     bool          `json:"dry_run,omitempty"`
}

type WarmResult struct {
	Results   []StrategyResult `json:"results"`
	TotalTime time.Duration    `json:"total_time"`
	TotalCost float64          `json:"total_cost"`
	Success   bool             `json:"success"`
}

type StrategyResult struct {
	Name       string        `json:"name"`
	Success    bool          `json:"success"`
	Skipped    bool          `json:"skipped"`
	SkipReason string        `json:"skip_reason,omitempty"`
	DryRun     bool          `json:"dry_run,omitempty"`
	Items      int           `json:"items"`
	Cost       float64       `json:"cost"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}
