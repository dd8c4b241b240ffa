package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for report generation.
type Metrics struct {
	// Compute latency by report ("population", "allergies")
	ComputeLatency *prometheus.HistogramVec

	// Report outcomes by report and result code
	ReportOutcome *prometheus.CounterVec

	// Age of the snapshot a report was computed from
	SnapshotAge prometheus.Histogram
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ComputeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "allergystats_report_compute_duration_seconds",
			Help:    "Duration of statistics computation, excluding feed reads",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"report"}),

		ReportOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "allergystats_reports_total",
			Help: "Reports served by report and outcome code",
		}, []string{"report", "outcome"}),

		SnapshotAge: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "allergystats_report_snapshot_age_seconds",
			Help:    "Age of the feed snapshot a report was computed from",
			Buckets: []float64{0.1, 1, 5, 15, 30, 60, 300, 900},
		}),
	}
}

// ObserveCompute records how long the aggregation took.
func (m *Metrics) ObserveCompute(report string, d time.Duration) {
	if m != nil {
		m.ComputeLatency.WithLabelValues(report).Observe(d.Seconds())
	}
}

// IncrementOutcome records a finished report; outcome is "ok" or an error code.
func (m *Metrics) IncrementOutcome(report, outcome string) {
	if m != nil {
		m.ReportOutcome.WithLabelValues(report, outcome).Inc()
	}
}

func (m *Metrics) ObserveSnapshotAge(d time.Duration) {
	if m != nil {
		m.SnapshotAge.Observe(d.Seconds())
	}
}
