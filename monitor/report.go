package monitor

import (
	"fmt"
	"sort"
	"time"

	"github.com/kwatlas/kwcache/types"
)

// GenerateReport aggregates the metric samples and alerts recorded inside
// the window into a summary with rule-derived recommendations.
func (m *Monitor) GenerateReport(window time.Duration) types.MonitorReport {
	cutoff := time.Now().Add(-window)

	m.mu.Lock()
	samples := make([]types.MetricSample, 0, len(m.samples))
	for _, sample := range m.samples {
		if sample.Timestamp.After(cutoff) {
			samples = append(samples, sample)
		}
	}
	alerts := make([]types.Alert, 0, len(m.alerts))
	for _, alert := range m.alerts {
		if alert.Timestamp.After(cutoff) {
			alerts = append(alerts, alert)
		}
	}
	m.mu.Unlock()

	report := types.MonitorReport{
		Window:      window,
		GeneratedAt: time.Now(),
		Samples:     len(samples),
		AlertCounts: map[types.AlertSeverity]int{},
	}

	var hitRateSum, latencySum float64
	hitRateSamples := 0
	for _, sample := range samples {
		if v, ok := sample.Values["hit_rate"]; ok {
			hitRateSum += v
			hitRateSamples++
		}
		latencySum += sample.Values["avg_latency_ms"]
	}
	if hitRateSamples > 0 {
		report.AvgHitRate = hitRateSum / float64(hitRateSamples)
	}
	if len(samples) > 0 {
		report.AvgLatencyMillis = latencySum / float64(len(samples))
	}

	issueCounts := make(map[string]int)
	for _, alert := range alerts {
		report.AlertCounts[alert.Severity]++
		issueCounts[alert.Component+": "+alert.Message]++
	}
	report.TopIssues = topIssues(issueCounts, 5)
	report.Recommendations = m.recommendations(report, hitRateSamples)

	return report
}

func (m *Monitor) recommendations(report types.MonitorReport, hitRateSamples int) []string {
	var recs []string

	if hitRateSamples > 0 && report.AvgHitRate < 0.5 {
		recs = append(recs, fmt.Sprintf(
			"hit rate averaged %.2f over the window; increase TTLs or add warming strategies", report.AvgHitRate))
	}
	if report.AvgLatencyMillis > 100 {
		recs = append(recs, fmt.Sprintf(
			"average cache latency is %.0fms; check remote store sizing and network path", report.AvgLatencyMillis))
	}
	if report.AlertCounts[types.SeverityCritical] > 0 {
		recs = append(recs, "critical alerts occurred in the window; review remote store availability")
	}
	if len(recs) == 0 && report.Samples > 0 {
		recs = append(recs, "cache is operating within configured thresholds")
	}

	return recs
}

func topIssues(counts map[string]int, limit int) []string {
	type issue struct {
		text  string
		count int
	}

	issues := make([]issue, 0, len(counts))
	for text, count := range counts {
		issues = append(issues, issue{text: text, count: count})
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].count != issues[j].count {
			return issues[i].count > issues[j].count
		}
		return issues[i].text < issues[j].text
	})

	if len(issues) > limit {
		issues = issues[:limit]
	}

	out := make([]string, len(issues))
	for i, iss := range issues {
		out[i] = fmt.Sprintf("%s (x%d)", iss.text, iss.count)
	}
	return out
}
