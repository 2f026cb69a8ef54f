package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/calltrace/pkg/recorder"
)

// RecorderMetrics tracks recorder activity. One instance is shared by all
// recorders of a process.
//
// Metrics:
//   - calltrace_recorder_traces_total: Recording periods by outcome (flushed, dropped)
//   - calltrace_recorder_calls_total: Completed calls by decision (kept, discarded)
//   - calltrace_recorder_chunks_flushed_total: Chunks handed to the output
//   - calltrace_recorder_bytes_total: Bytes by fate (flushed, dropped)
//   - calltrace_recorder_lost_events_total: Reentrant events ignored
//   - calltrace_recorder_stack_growths_total: Shadow stack reallocations
//   - calltrace_recorder_stack_capacity_max: Largest shadow stack seen
//   - calltrace_recorder_failures_total: Recorders that entered the failed state
type RecorderMetrics struct {
	traces        *prometheus.CounterVec
	calls         *prometheus.CounterVec
	chunksFlushed prometheus.Counter
	bytes         *prometheus.CounterVec
	lostEvents    prometheus.Counter
	stackGrowths  prometheus.Counter
	stackCapacity prometheus.Gauge
	failures      prometheus.Counter

	// Pre-resolved label children; TraceFinished runs at every trace end.
	tracesFlushed, tracesDropped prometheus.Counter
	callsKept, callsDiscarded    prometheus.Counter
	bytesFlushed, bytesDropped   prometheus.Counter

	mu          sync.Mutex
	maxCapacity int
}

var _ recorder.Observer = (*RecorderMetrics)(nil)

// NewRecorderMetrics creates and registers recorder metrics.
func NewRecorderMetrics(namespace string, registry prometheus.Registerer) *RecorderMetrics {
	const subsystem = "recorder"

	m := &RecorderMetrics{
		traces: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "traces_total",
				Help:      "Recording periods by outcome",
			},
			[]string{"outcome"},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "calls_total",
				Help:      "Completed calls by filter decision",
			},
			[]string{"decision"},
		),
		chunksFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chunks_flushed_total",
			Help:      "Chunks handed to the output",
		}),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "bytes_total",
				Help:      "Encoded bytes by fate",
			},
			[]string{"fate"},
		),
		lostEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lost_events_total",
			Help:      "Events ignored because the recorder was busy",
		}),
		stackGrowths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stack_growths_total",
			Help:      "Shadow stack reallocations",
		}),
		stackCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stack_capacity_max",
			Help:      "Largest shadow stack capacity reached by any recorder",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failures_total",
			Help:      "Recorders that entered the failed state",
		}),
	}

	m.tracesFlushed = m.traces.WithLabelValues("flushed")
	m.tracesDropped = m.traces.WithLabelValues("dropped")
	m.callsKept = m.calls.WithLabelValues("kept")
	m.callsDiscarded = m.calls.WithLabelValues("discarded")
	m.bytesFlushed = m.bytes.WithLabelValues("flushed")
	m.bytesDropped = m.bytes.WithLabelValues("dropped")

	registry.MustRegister(
		m.traces,
		m.calls,
		m.chunksFlushed,
		m.bytes,
		m.lostEvents,
		m.stackGrowths,
		m.stackCapacity,
		m.failures,
	)
	return m
}

// TraceFinished implements recorder.Observer.
func (m *RecorderMetrics) TraceFinished(s recorder.TraceSummary) {
	if s.Flushes > 0 {
		m.tracesFlushed.Add(float64(s.Flushes))
	}
	if s.Dropped() {
		m.tracesDropped.Inc()
	}
	m.callsKept.Add(float64(s.CallsKept))
	m.callsDiscarded.Add(float64(s.CallsDiscarded))
	m.chunksFlushed.Add(float64(s.ChunksFlushed))
	m.bytesFlushed.Add(float64(s.BytesFlushed))
	m.bytesDropped.Add(float64(s.BytesDropped))
	m.lostEvents.Add(float64(s.LostEvents))
}

// StackGrown implements recorder.Observer.
func (m *RecorderMetrics) StackGrown(capacity int) {
	m.stackGrowths.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	if capacity > m.maxCapacity {
		m.maxCapacity = capacity
		m.stackCapacity.Set(float64(capacity))
	}
}

// Failed implements recorder.Observer.
func (m *RecorderMetrics) Failed(error) {
	m.failures.Inc()
}
