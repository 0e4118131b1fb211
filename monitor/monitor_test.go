package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kwatlas/kwcache/logger"
	"github.com/kwatlas/kwcache/types"
)

type fakeProbe struct {
	stats     types.CacheStats
	info      types.RemoteInfo
	infoErr   error
	infoCalls int
}

func (f *fakeProbe) GetStats() types.CacheStats {
	return f.stats
}

func (f *fakeProbe) RemoteInfo(ctx context.Context) (types.RemoteInfo, error) {
	f.infoCalls++
	return f.info, f.infoErr
}

func healthyStats() types.CacheStats {
	return types.CacheStats{
		Hits:       900,
		Misses:     100,
		Sets:       200,
		HitRate:    0.9,
		AvgLatency: 2 * time.Millisecond,
	}
}

func newTestMonitor(t *testing.T, probe StoreProbe) *Monitor {
	t.Helper()
	cfg := &types.MonitoringConfig{
		Enabled:        true,
		SampleInterval: time.Hour,
		MetricHistory:  1440,
		AlertHistory:   500,
	}
	return NewMonitor(context.Background(), logger.NewZapWrapper(zap.NewNop()), cfg, probe, nil)
}

func TestCheckNowHealthy(t *testing.T) {
	probe := &fakeProbe{stats: healthyStats(), info: types.RemoteInfo{KeyCount: 42}}
	m := newTestMonitor(t, probe)

	sample := m.CheckNow()

	assert.InDelta(t, 0.9, sample.Values["hit_rate"], 1e-9)
	assert.Equal(t, float64(42), sample.Values["remote_key_count"])
	assert.Empty(t, m.Alerts())
}

func TestLowHitRateRaisesCritical(t *testing.T) {
	probe := &fakeProbe{stats: types.CacheStats{
		Hits:    10,
		Misses:  90,
		HitRate: 0.1,
	}}
	m := newTestMonitor(t, probe)

	m.CheckNow()
	// repeated checks inside the cooldown window must not duplicate
	m.CheckNow()
	m.CheckNow()

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, types.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "cache", alerts[0].Component)
	assert.Contains(t, alerts[0].Message, "hit_rate")
}

func TestHitRateSkippedWithoutLookups(t *testing.T) {
	probe := &fakeProbe{stats: types.CacheStats{}}
	m := newTestMonitor(t, probe)

	sample := m.CheckNow()

	_, ok := sample.Values["hit_rate"]
	assert.False(t, ok)
	assert.Empty(t, m.Alerts())
}

func TestAlertResolvesWhenMetricRecovers(t *testing.T) {
	probe := &fakeProbe{stats: types.CacheStats{Hits: 10, Misses: 90, HitRate: 0.1}}
	m := newTestMonitor(t, probe)

	m.CheckNow()
	require.Len(t, m.Alerts(), 1)
	assert.False(t, m.Alerts()[0].Resolved)

	probe.stats = healthyStats()
	m.CheckNow()

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Resolved)
	assert.False(t, alerts[0].ResolvedAt.IsZero())
}

func TestRemoteUnreachableAlert(t *testing.T) {
	probe := &fakeProbe{stats: healthyStats(), infoErr: errors.New("connection refused")}
	m := newTestMonitor(t, probe)

	m.CheckNow()

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, types.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "remote_store", alerts[0].Component)

	probe.infoErr = nil
	m.CheckNow()
	assert.True(t, m.Alerts()[0].Resolved)
}

func TestSinkInvokedOncePerAlert(t *testing.T) {
	probe := &fakeProbe{stats: types.CacheStats{Hits: 10, Misses: 90, HitRate: 0.1}}
	m := newTestMonitor(t, probe)

	var received []types.Alert
	m.AddSink(func(alert types.Alert) {
		received = append(received, alert)
	})

	m.CheckNow()
	m.CheckNow()

	require.Len(t, received, 1)
	assert.Equal(t, types.SeverityCritical, received[0].Severity)
}

func TestResolveAlertByID(t *testing.T) {
	probe := &fakeProbe{stats: types.CacheStats{Hits: 10, Misses: 90, HitRate: 0.1}}
	m := newTestMonitor(t, probe)

	m.CheckNow()
	alerts := m.Alerts()
	require.Len(t, alerts, 1)

	assert.True(t, m.ResolveAlert(alerts[0].ID))
	assert.True(t, m.Alerts()[0].Resolved)
	assert.False(t, m.ResolveAlert(alerts[0].ID))
	assert.False(t, m.ResolveAlert("no-such-id"))
}

func TestStartStop(t *testing.T) {
	probe := &fakeProbe{stats: healthyStats()}
	m := newTestMonitor(t, probe)

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	require.NoError(t, m.Start()) // idempotent

	require.NoError(t, m.Stop())
	assert.False(t, m.IsRunning())
	require.NoError(t, m.Stop())
}

func TestStartDisabled(t *testing.T) {
	probe := &fakeProbe{stats: healthyStats()}
	cfg := &types.MonitoringConfig{Enabled: false}
	m := NewMonitor(context.Background(), logger.NewZapWrapper(zap.NewNop()), cfg, probe, nil)

	assert.ErrorIs(t, m.Start(), types.ErrMonitorIsDisabled)
}

func TestThresholdEvaluate(t *testing.T) {
	hitRate := ThresholdRule{Metric: "hit_rate", Direction: LowerIsWorse, Warning: 0.5, Critical: 0.2}
	latency := ThresholdRule{Metric: "avg_latency_ms", Direction: HigherIsWorse, Warning: 100, Critical: 500}

	assert.Equal(t, types.ThresholdGood, hitRate.Evaluate(0.9))
	assert.Equal(t, types.ThresholdWarning, hitRate.Evaluate(0.4))
	assert.Equal(t, types.ThresholdWarning, hitRate.Evaluate(0.5))
	assert.Equal(t, types.ThresholdCritical, hitRate.Evaluate(0.2))
	assert.Equal(t, types.ThresholdCritical, hitRate.Evaluate(0.05))

	assert.Equal(t, types.ThresholdGood, latency.Evaluate(10))
	assert.Equal(t, types.ThresholdWarning, latency.Evaluate(150))
	assert.Equal(t, types.ThresholdCritical, latency.Evaluate(700))
}

func TestGenerateReport(t *testing.T) {
	probe := &fakeProbe{stats: types.CacheStats{Hits: 10, Misses: 90, HitRate: 0.1}}
	m := newTestMonitor(t, probe)

	m.CheckNow()

	report := m.GenerateReport(time.Hour)

	assert.Equal(t, 1, report.Samples)
	assert.InDelta(t, 0.1, report.AvgHitRate, 1e-9)
	assert.Equal(t, 1, report.AlertCounts[types.SeverityCritical])
	assert.NotEmpty(t, report.TopIssues)
	require.NotEmpty(t, report.Recommendations)
	assert.Contains(t, report.Recommendations[0], "warming")
}

func TestGenerateReportHealthy(t *testing.T) {
	probe := &fakeProbe{stats: healthyStats()}
	m := newTestMonitor(t, probe)

	m.CheckNow()
	m.CheckNow()

	report := m.GenerateReport(time.Hour)

	assert.Equal(t, 2, report.Samples)
	assert.InDelta(t, 0.9, report.AvgHitRate, 1e-9)
	assert.Empty(t, report.TopIssues)
	require.Len(t, report.Recommendations, 1)
	assert.Contains(t, report.Recommendations[0], "within configured thresholds")
}

func TestGenerateReportWindowExcludesOld(t *testing.T) {
	probe := &fakeProbe{stats: healthyStats()}
	m := newTestMonitor(t, probe)

	m.CheckNow()

	report := m.GenerateReport(time.Nanosecond)
	assert.Equal(t, 0, report.Samples)
}
