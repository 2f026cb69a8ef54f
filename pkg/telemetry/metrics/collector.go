package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// DefaultNamespace is the metric name prefix.
const DefaultNamespace = "calltrace"

// Collector owns a Prometheus registry and the metric groups of every
// calltrace component.
//
// The groups implement the observer interfaces of the packages they
// measure, so wiring is a matter of passing them in:
//
//	c := metrics.NewCollector(nil)
//	r := recorder.New(cfg, out, syms, recorder.WithObserver(c.Recorder()))
//	q := sink.NewQueueSink(store, nil, sink.WithObserver(c.Sink()))
type Collector struct {
	registry *prometheus.Registry

	recorderMetrics  *RecorderMetrics
	sinkMetrics      *SinkMetrics
	retentionMetrics *RetentionMetrics
}

// NewCollector creates a collector registering into registry. If registry
// is nil a new one is created with the Go runtime and process collectors.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Collector{
		registry:         registry,
		recorderMetrics:  NewRecorderMetrics(DefaultNamespace, registry),
		sinkMetrics:      NewSinkMetrics(DefaultNamespace, registry),
		retentionMetrics: NewRetentionMetrics(DefaultNamespace, registry),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Recorder returns the recorder metrics. It is a recorder.Observer.
func (c *Collector) Recorder() *RecorderMetrics {
	return c.recorderMetrics
}

// Sink returns the queue sink metrics. It is a sink.Observer.
func (c *Collector) Sink() *SinkMetrics {
	return c.sinkMetrics
}

// Retention returns the pruning metrics. It is a retention.Observer.
func (c *Collector) Retention() *RetentionMetrics {
	return c.retentionMetrics
}
