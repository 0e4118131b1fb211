// Package monitor samples cache health on a fixed interval, evaluates
// metrics against threshold rules, and manages the alert lifecycle.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kwatlas/kwcache/metrics"
	"github.com/kwatlas/kwcache/types"
)

const remoteStoreRule = "remote_store"

// StoreProbe is the slice of the cache store the monitor observes.
type StoreProbe interface {
	GetStats() types.CacheStats
	RemoteInfo(ctx context.Context) (types.RemoteInfo, error)
}

type Monitor struct {
	ctx        context.Context
	cancel     context.CancelFunc
	logger     types.Logger
	config     *types.MonitoringConfig
	probe      StoreProbe
	metrics    *metrics.Manager
	rules      []ThresholdRule
	mu         sync.Mutex
	samples    []types.MetricSample
	alerts     []types.Alert
	active     map[string]string // rule key -> alert id
	lastRaised map[string]time.Time
	sinks      []types.AlertSink
	started    int32
	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

func NewMonitor(ctx context.Context, logger types.Logger, config *types.MonitoringConfig, probe StoreProbe, m *metrics.Manager) *Monitor {
	if config == nil {
		config = &types.MonitoringConfig{Enabled: true}
	}

	monitorCtx, cancel := context.WithCancel(ctx)

	return &Monitor{
		ctx:        monitorCtx,
		cancel:     cancel,
		logger:     logger,
		config:     config,
		probe:      probe,
		metrics:    m,
		rules:      defaultRules(),
		active:     make(map[string]string),
		lastRaised: make(map[string]time.Time),
		shutdownCh: make(chan struct{}),
	}
}

// SetRules replaces the threshold table. Call before Start.
func (m *Monitor) SetRules(rules []ThresholdRule) {
	m.rules = rules
}

// AddSink registers a callback invoked synchronously for every raised
// alert. Delivery is the sink's concern.
func (m *Monitor) AddSink(sink types.AlertSink) {
	m.mu.Lock()
	m.sinks = append(m.sinks, sink)
	m.mu.Unlock()
}

func (m *Monitor) Start() error {
	if !m.config.Enabled {
		return types.ErrMonitorIsDisabled
	}
	if !atomic.CompareAndSwapInt32(&m.started, 0, 1) {
		return nil
	}

	interval := m.config.SampleInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				func() {
					defer func() {
						if rec := recover(); rec != nil {
							m.logger.Error("panic in monitor sample", zap.Any("panic", rec))
						}
					}()
					m.CheckNow()
				}()
			case <-m.shutdownCh:
				return
			case <-m.ctx.Done():
				return
			}
		}
	}()

	m.logger.Info("health monitor started", zap.Duration("interval", interval))
	return nil
}

func (m *Monitor) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.started, 1, 0) {
		return nil
	}

	close(m.shutdownCh)
	m.cancel()
	m.wg.Wait()

	m.logger.Info("health monitor stopped")
	return nil
}

func (m *Monitor) IsRunning() bool {
	return atomic.LoadInt32(&m.started) == 1
}

// CheckNow performs one sampling pass: collect metrics, record the sample,
// evaluate thresholds, and reconcile the remote-store dependency alert.
func (m *Monitor) CheckNow() types.MetricSample {
	stats := m.probe.GetStats()

	values := map[string]float64{
		"error_rate":     errorRate(stats),
		"avg_latency_ms": float64(stats.AvgLatency.Milliseconds()),
		"fallback_keys":  float64(stats.FallbackKeys),
	}
	if stats.Hits+stats.Misses > 0 {
		values["hit_rate"] = stats.HitRate
	}

	sampleCtx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	info, infoErr := m.probe.RemoteInfo(sampleCtx)
	cancel()

	if infoErr == nil {
		values["remote_memory_bytes"] = float64(info.UsedMemoryBytes)
		values["remote_peak_memory_bytes"] = float64(info.PeakMemoryBytes)
		values["remote_key_count"] = float64(info.KeyCount)
		values["remote_clients"] = float64(info.ConnectedClients)
	}

	sample := types.MetricSample{
		Timestamp: time.Now(),
		Values:    values,
	}

	m.mu.Lock()
	m.samples = append(m.samples, sample)
	if limit := m.historyLimit(); len(m.samples) > limit {
		m.samples = m.samples[len(m.samples)-limit:]
	}
	m.mu.Unlock()

	m.exportGauges(values)
	m.evaluateRules(values)

	if infoErr != nil {
		m.raise(remoteStoreRule, types.SeverityCritical, "remote_store",
			"remote store unreachable: "+infoErr.Error(), nil)
	} else {
		m.resolve(remoteStoreRule)
	}

	return sample
}

func (m *Monitor) evaluateRules(values map[string]float64) {
	for _, rule := range m.rules {
		value, ok := values[rule.Metric]
		if !ok {
			continue
		}

		switch rule.Evaluate(value) {
		case types.ThresholdCritical:
			m.raise(rule.Metric, types.SeverityCritical, rule.Component,
				fmt.Sprintf("%s critical: %.3f", rule.Metric, value),
				map[string]interface{}{"metric": rule.Metric, "value": value})
		case types.ThresholdWarning:
			m.raise(rule.Metric, types.SeverityWarning, rule.Component,
				fmt.Sprintf("%s degraded: %.3f", rule.Metric, value),
				map[string]interface{}{"metric": rule.Metric, "value": value})
		default:
			m.resolve(rule.Metric)
		}
	}
}

// raise creates an alert for the rule key unless one was already raised
// within the severity's cooldown window.
func (m *Monitor) raise(ruleKey string, severity types.AlertSeverity, component, message string, metadata map[string]interface{}) {
	m.mu.Lock()

	if last, ok := m.lastRaised[ruleKey]; ok && time.Since(last) < cooldownFor(severity) {
		m.mu.Unlock()
		return
	}

	alert := types.Alert{
		ID:        uuid.NewString(),
		Severity:  severity,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}

	m.lastRaised[ruleKey] = alert.Timestamp
	m.active[ruleKey] = alert.ID
	m.alerts = append(m.alerts, alert)
	if limit := m.alertLimit(); len(m.alerts) > limit {
		m.alerts = m.alerts[len(m.alerts)-limit:]
	}

	sinks := make([]types.AlertSink, len(m.sinks))
	copy(sinks, m.sinks)
	m.mu.Unlock()

	m.logger.Warn("alert raised",
		zap.String("severity", string(severity)),
		zap.String("component", component),
		zap.String("message", message))

	for _, sink := range sinks {
		sink(alert)
	}
}

// resolve clears the active alert for a rule when its condition no longer
// holds on a later check.
func (m *Monitor) resolve(ruleKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alertID, ok := m.active[ruleKey]
	if !ok {
		return
	}
	delete(m.active, ruleKey)

	for i := range m.alerts {
		if m.alerts[i].ID == alertID && !m.alerts[i].Resolved {
			m.alerts[i].Resolved = true
			m.alerts[i].ResolvedAt = time.Now()
			break
		}
	}
}

// ResolveAlert marks an alert resolved by id, for the administrative
// surface.
func (m *Monitor) ResolveAlert(alertID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID == alertID && !m.alerts[i].Resolved {
			m.alerts[i].Resolved = true
			m.alerts[i].ResolvedAt = time.Now()

			for key, id := range m.active {
				if id == alertID {
					delete(m.active, key)
				}
			}
			return true
		}
	}
	return false
}

func (m *Monitor) Alerts() []types.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

func (m *Monitor) exportGauges(values map[string]float64) {
	if m.metrics == nil {
		return
	}
	for name, value := range values {
		m.metrics.Gauge("cache_monitor_"+name, nil).Set(value)
	}
}

func (m *Monitor) historyLimit() int {
	if m.config.MetricHistory > 0 {
		return m.config.MetricHistory
	}
	return 1440
}

func (m *Monitor) alertLimit() int {
	if m.config.AlertHistory > 0 {
		return m.config.AlertHistory
	}
	return 500
}

// cooldownFor scales the duplicate-suppression window by severity: the
// noisier the class, the longer the quiet period.
func cooldownFor(severity types.AlertSeverity) time.Duration {
	switch severity {
	case types.SeverityCritical:
		return 5 * time.Minute
	case types.SeverityWarning:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

func errorRate(stats types.CacheStats) float64 {
	total := stats.Hits + stats.Misses + stats.Sets + stats.Deletes
	if total == 0 {
		return 0
	}
	return float64(stats.Errors) / float64(total)
}
