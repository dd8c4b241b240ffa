package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers feed reads: per-feed latency and failures, snapshot cache
// lookups and the upstream circuit breaker.
type Metrics struct {
	FetchDuration *prometheus.HistogramVec
	FetchErrors   *prometheus.CounterVec
	CacheLookups  *prometheus.CounterVec
	BreakerOpen   prometheus.Gauge
	StaleServed   prometheus.Counter
}

// New registers the feed metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "allergystats_feed_fetch_duration_seconds",
			Help:    "Latency of a single feed read",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"feed"}),
		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "allergystats_feed_fetch_errors_total",
			Help: "Failed feed reads by feed and error category",
		}, []string{"feed", "category"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "allergystats_feed_cache_lookups_total",
			Help: "Snapshot cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "allergystats_feed_breaker_open",
			Help: "1 while the data service circuit breaker is open",
		}),
		StaleServed: f.NewCounter(prometheus.CounterOpts{
			Name: "allergystats_feed_stale_snapshots_total",
			Help: "Snapshots served from the last good read while the breaker was open",
		}),
	}
}

func (m *Metrics) ObserveFetch(feed string, start time.Time) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementFetchError(feed, category string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(feed, category).Inc()
}

func (m *Metrics) IncrementCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

func (m *Metrics) IncrementStaleServed() {
	if m == nil {
		return
	}
	m.StaleServed.Inc()
}
