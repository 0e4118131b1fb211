package monitor

import (
	"github.com/kwatlas/kwcache/types"
)

// Direction tells the evaluator which way a metric degrades: latency and
// error rate climb as things go wrong, hit rate falls.
type Direction int

const (
	HigherIsWorse Direction = iota
	LowerIsWorse
)

type ThresholdRule struct {
	Metric    string
	Component string
	Direction Direction
	Warning   float64
	Critical  float64
}

// Evaluate places value into the good / warning / critical band according
// to the rule's direction.
func (r ThresholdRule) Evaluate(value float64) types.ThresholdLevel {
	switch r.Direction {
	case LowerIsWorse:
		if value <= r.Critical {
			return types.ThresholdCritical
		}
		if value <= r.Warning {
			return types.ThresholdWarning
		}
	default:
		if value >= r.Critical {
			return types.ThresholdCritical
		}
		if value >= r.Warning {
			return types.ThresholdWarning
		}
	}
	return types.ThresholdGood
}

func defaultRules() []ThresholdRule {
	return []ThresholdRule{
		{
			Metric:    "hit_rate",
			Component: "cache",
			Direction: LowerIsWorse,
			Warning:   0.5,
			Critical:  0.2,
		},
		{
			Metric:    "error_rate",
			Component: "cache",
			Direction: HigherIsWorse,
			Warning:   0.05,
			Critical:  0.1,
		},
		{
			Metric:    "avg_latency_ms",
			Component: "cache",
			Direction: HigherIsWorse,
			Warning:   100,
			Critical:  500,
		},
	}
}
