// Package metrics exposes prometheus instruments behind a small manager so
// callers never register collectors twice.
package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Manager struct {
	namespace  string
	registry   *prometheus.Registry
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func NewManager(namespace string) *Manager {
	m := &Manager{
		namespace:  namespace,
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	return m
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) Counter(name string, labels map[string]string) prometheus.Counter {
	names, values := splitLabels(labels)
	key := vecKey(name, names)

	m.mu.Lock()
	vec, ok := m.counters[key]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: m.namespace, Name: name}, names)
		m.registry.MustRegister(vec)
		m.counters[key] = vec
	}
	m.mu.Unlock()

	return vec.WithLabelValues(values...)
}

func (m *Manager) Gauge(name string, labels map[string]string) prometheus.Gauge {
	names, values := splitLabels(labels)
	key := vecKey(name, names)

	m.mu.Lock()
	vec, ok := m.gauges[key]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: m.namespace, Name: name}, names)
		m.registry.MustRegister(vec)
		m.gauges[key] = vec
	}
	m.mu.Unlock()

	return vec.WithLabelValues(values...)
}

func (m *Manager) Histogram(name string, buckets []float64, labels map[string]string) prometheus.Observer {
	names, values := splitLabels(labels)
	key := vecKey(name, names)

	m.mu.Lock()
	vec, ok := m.histograms[key]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: m.namespace, Name: name, Buckets: buckets}, names)
		m.registry.MustRegister(vec)
		m.histograms[key] = vec
	}
	m.mu.Unlock()

	return vec.WithLabelValues(values...)
}

func splitLabels(labels map[string]string) (names, values []string) {
	names = make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	values = make([]string, len(names))
	for i, name := range names {
		values[i] = labels[name]
	}
	return names, values
}

func vecKey(name string, labelNames []string) string {
	return name + "|" + strings.Join(labelNames, ",")
}
