package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mercator-hq/calltrace/pkg/retention"
)

// RetentionMetrics tracks pruning runs.
type RetentionMetrics struct {
	pruned   prometheus.Counter
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

var _ retention.Observer = (*RetentionMetrics)(nil)

// NewRetentionMetrics creates and registers retention metrics.
func NewRetentionMetrics(namespace string, registry prometheus.Registerer) *RetentionMetrics {
	const subsystem = "retention"
	factory := promauto.With(registry)

	return &RetentionMetrics{
		pruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pruned_traces_total",
			Help:      "Traces deleted by retention",
		}),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_total",
				Help:      "Pruning runs by result",
			},
			[]string{"result"},
		),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Duration of pruning runs",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Pruned implements retention.Observer.
func (m *RetentionMetrics) Pruned(deleted int64, duration time.Duration, err error) {
	m.duration.Observe(duration.Seconds())
	m.pruned.Add(float64(deleted))
	if err != nil {
		m.runs.WithLabelValues("error").Inc()
		return
	}
	m.runs.WithLabelValues("ok").Inc()
}
