// Package metrics exposes Prometheus counters for the import pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// ImportMetrics groups the import collectors. A nil *ImportMetrics is valid
// and records nothing.
type ImportMetrics struct {
	uploads        *prometheus.CounterVec
	rows           *prometheus.CounterVec
	created        prometheus.Counter
	failed         prometheus.Counter
	purged         prometheus.Counter
	cleanupDeleted prometheus.Counter
	duration       *prometheus.HistogramVec
}

// NewImportMetrics registers the collectors on reg.
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	factory := promauto.With(reg)
	return &ImportMetrics{
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rotations",
			Subsystem: "import",
			Name:      "uploads_total",
			Help:      "Uploads handled, broken down by outcome.",
		}, []string{"outcome"}),
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rotations",
			Subsystem: "import",
			Name:      "validated_rows_total",
			Help:      "Validated rows by bucket.",
		}, []string{"bucket"}),
		created: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rotations",
			Subsystem: "import",
			Name:      "created_total",
			Help:      "Rotations created by imports.",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rotations",
			Subsystem: "import",
			Name:      "failed_rows_total",
			Help:      "Import rows that could not be created.",
		}),
		purged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rotations",
			Subsystem: "import",
			Name:      "purged_total",
			Help:      "Rotations removed by replace-mode imports.",
		}),
		cleanupDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rotations",
			Subsystem: "cleanup",
			Name:      "deleted_total",
			Help:      "Past rotations removed by the cleanup job.",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rotations",
			Subsystem: "import",
			Name:      "step_duration_seconds",
			Help:      "Duration of workflow steps.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"step"}),
	}
}

func (m *ImportMetrics) Upload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

// Buckets records the sizes of the three validation buckets.
func (m *ImportMetrics) Buckets(valid, warnings, errors int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues("valid").Add(float64(valid))
	m.rows.WithLabelValues("warning").Add(float64(warnings))
	m.rows.WithLabelValues("error").Add(float64(errors))
}

func (m *ImportMetrics) Executed(created, failed, purged int) {
	if m == nil {
		return
	}
	m.created.Add(float64(created))
	m.failed.Add(float64(failed))
	m.purged.Add(float64(purged))
}

func (m *ImportMetrics) CleanupDeleted(n int) {
	if m == nil {
		return
	}
	m.cleanupDeleted.Add(float64(n))
}

// ObserveStep records how long a workflow step took since start.
func (m *ImportMetrics) ObserveStep(step string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}
