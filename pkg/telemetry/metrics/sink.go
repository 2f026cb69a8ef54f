package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mercator-hq/calltrace/pkg/sink"
)

// SinkMetrics tracks the queue sink and its store.
type SinkMetrics struct {
	queueDepth    prometheus.Gauge
	dropped       prometheus.Counter
	droppedChunks prometheus.Counter
	writes        *prometheus.CounterVec
	writeDuration prometheus.Histogram
	traceSize     prometheus.Histogram
}

var _ sink.Observer = (*SinkMetrics)(nil)

// NewSinkMetrics creates and registers sink metrics.
func NewSinkMetrics(namespace string, registry prometheus.Registerer) *SinkMetrics {
	const subsystem = "sink"
	factory := promauto.With(registry)

	return &SinkMetrics{
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Submissions waiting for the store writer",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "submissions_dropped_total",
			Help:      "Submissions discarded because the queue was full or closed",
		}),
		droppedChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chunks_dropped_total",
			Help:      "Chunks released without being stored",
		}),
		writes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "store_writes_total",
				Help:      "Store writes by result",
			},
			[]string{"result"},
		),
		writeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_write_duration_seconds",
			Help:      "Duration of store writes",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
		}),
		traceSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "trace_size_bytes",
			Help:      "Size of stored traces",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10), // 256B to 64MB
		}),
	}
}

// Enqueued implements sink.Observer.
func (m *SinkMetrics) Enqueued(depth int) {
	m.queueDepth.Set(float64(depth))
}

// Dropped implements sink.Observer.
func (m *SinkMetrics) Dropped(chunks int) {
	m.dropped.Inc()
	m.droppedChunks.Add(float64(chunks))
}

// Stored implements sink.Observer.
func (m *SinkMetrics) Stored(duration time.Duration, size int, err error) {
	m.writeDuration.Observe(duration.Seconds())
	if err != nil {
		m.writes.WithLabelValues("error").Inc()
		return
	}
	m.writes.WithLabelValues("ok").Inc()
	m.traceSize.Observe(float64(size))
}

// SetQueueDepth updates the queue depth gauge.
func (m *SinkMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}
