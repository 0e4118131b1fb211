package types

import (
	"time"
)

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityInfo     AlertSeverity = "info"
)

type AlertSeverity string

type Alert struct {
	ID         string                 `json:"id"`
	Severity   AlertSeverity          `json:"severity"`
	Component  string                 `json:"component"`
	Message    string                 `json:"message"`
	Timestamp  time.Time              `json:"timestamp"`
	Resolved   bool                   `json:"resolved"`
	ResolvedAt time.Time              `json:"resolved_at,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// AlertSink receives raised alerts synchronously. Delivery (log line,
// webhook, queue) is the sink's responsibility, not the monitor's.
type AlertSink func(alert Alert)

type MetricSample struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

const (
	ThresholdGood     ThresholdLevel = "good"
	ThresholdWarning  ThresholdLevel = "warning"
	ThresholdCritical ThresholdLevel = "critical"
)

type ThresholdLevel string

type MonitorReport struct {
	Window           time.Duration            `json:"window"`
	GeneratedAt      time.Time                `json:"generated_at"`
	Samples          int                      `json:"samples"`
	AvgHitRate       float64                  `json:"avg_hit_rate"`
	AvgLatencyMillis float64                  `json:"avg_latency_millis"`
	AlertCounts      map[AlertSeverity]int    `json:"alert_counts"`
	TopIssues        []string                 `json:"top_issues,omitempty"`
	Recommendations  []string                 `json:"recommendations,omitempty"`
}
