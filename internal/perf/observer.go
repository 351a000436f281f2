// Package perf records operation latencies and outcomes as a passive side
// channel: it never blocks the wrapped call, and metric failures are
// swallowed rather than propagated.
package perf

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common outcome labels. Domain-specific labels (submission outcomes) are
// passed through verbatim.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCacheHit  = "cache_hit"
	OutcomeCacheMiss = "cache_miss"
)

const defaultSlowThreshold = 500 * time.Millisecond

// OpStats is the aggregate view for one operation class.
type OpStats struct {
	Count    int64
	Errors   int64
	Slow     int64
	TotalDur time.Duration
	MaxDur   time.Duration
}

// Avg returns the mean duration, zero when nothing was recorded.
func (s OpStats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalDur / time.Duration(s.Count)
}

// Observer brackets operations with Start/stop, exporting Prometheus metrics
// and an in-process aggregate for operator queries.
type Observer struct {
	slowThreshold time.Duration
	registry      *prometheus.Registry
	now           func() time.Time

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	slowOps    *prometheus.CounterVec

	mu    sync.Mutex
	stats map[string]*OpStats
}

// New builds an Observer on its own registry. A non-positive slowThreshold
// falls back to the default.
func New(slowThreshold time.Duration) *Observer {
	if slowThreshold <= 0 {
		slowThreshold = defaultSlowThreshold
	}
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	return &Observer{
		slowThreshold: slowThreshold,
		registry:      registry,
		now:           time.Now,
		operations: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mentalmaze",
			Subsystem: "quiz",
			Name:      "operations_total",
			Help:      "Operations by name and outcome",
		}, []string{"op", "outcome"}),
		duration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mentalmaze",
			Subsystem: "quiz",
			Name:      "operation_duration_seconds",
			Help:      "Operation latency by name",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		slowOps: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mentalmaze",
			Subsystem: "quiz",
			Name:      "slow_operations_total",
			Help:      "Operations that exceeded the slow threshold",
		}, []string{"op"}),
		stats: make(map[string]*OpStats),
	}
}

// WithClock is test-only for deterministic durations.
func (o *Observer) WithClock(now func() time.Time) *Observer {
	o.now = now
	return o
}

// Start begins measuring op and returns the stop half of the bracket. The
// returned function records duration and the caller-supplied outcome label.
func (o *Observer) Start(op string) func(outcome string) {
	began := o.now()
	return func(outcome string) {
		elapsed := o.now().Sub(began)

		o.operations.WithLabelValues(op, outcome).Inc()
		o.duration.WithLabelValues(op).Observe(elapsed.Seconds())
		slow := elapsed > o.slowThreshold
		if slow {
			o.slowOps.WithLabelValues(op).Inc()
		}

		o.mu.Lock()
		s, ok := o.stats[op]
		if !ok {
			s = &OpStats{}
			o.stats[op] = s
		}
		s.Count++
		if outcome == OutcomeError {
			s.Errors++
		}
		if slow {
			s.Slow++
		}
		s.TotalDur += elapsed
		if elapsed > s.MaxDur {
			s.MaxDur = elapsed
		}
		o.mu.Unlock()
	}
}

// Stats returns a copy of the in-process aggregates.
func (o *Observer) Stats() map[string]OpStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]OpStats, len(o.stats))
	for op, s := range o.stats {
		out[op] = *s
	}
	return out
}

// Handler exposes the underlying Prometheus registry over HTTP.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}
