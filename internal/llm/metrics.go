package llm

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks provider call counters.
type Metrics struct {
	calls   int64
	errors  int64
	latency int64 // nanoseconds
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Calls        int64   `json:"calls"`
	Errors       int64   `json:"errors"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
	ErrorRatePct float64 `json:"errorRatePct"`
}

func (m *Metrics) record(d time.Duration, err error) {
	atomic.AddInt64(&m.calls, 1)
	atomic.AddInt64(&m.latency, d.Nanoseconds())
	if err != nil {
		atomic.AddInt64(&m.errors, 1)
	}
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	calls := atomic.LoadInt64(&m.calls)
	errs := atomic.LoadInt64(&m.errors)
	lat := atomic.LoadInt64(&m.latency)
	s := MetricsSnapshot{Calls: calls, Errors: errs}
	if calls > 0 {
		s.AvgLatencyMs = float64(lat) / float64(calls) / 1e6
		s.ErrorRatePct = float64(errs) / float64(calls) * 100
	}
	return s
}

var (
	metricsMu sync.Mutex
	metrics   = map[string]*Metrics{}
)

func metricsFor(provider string) *Metrics {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	m, ok := metrics[provider]
	if !ok {
		m = &Metrics{}
		metrics[provider] = m
	}
	return m
}

// GetMetrics returns a snapshot per provider name.
func GetMetrics() map[string]MetricsSnapshot {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	out := make(map[string]MetricsSnapshot, len(metrics))
	for name, m := range metrics {
		out[name] = m.Snapshot()
	}
	return out
}

// ResetMetrics clears all counters.
func ResetMetrics() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	metrics = map[string]*Metrics{}
}
