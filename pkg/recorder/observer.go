package recorder

// Observer is notified at trace boundaries. It is never called per call, so
// implementations may take locks or update shared metrics.
type Observer interface {
	// TraceFinished is called each time the stack becomes empty.
	TraceFinished(s TraceSummary)
	// StackGrown is called after the shadow stack doubled.
	StackGrown(capacity int)
	// Failed is called once when the recorder enters the failed state.
	Failed(err error)
}

// TraceSummary describes one recording period, from an empty stack back to
// an empty stack.
type TraceSummary struct {
	Flushes        int
	ChunksFlushed  int
	BytesFlushed   int64
	BytesDropped   int64
	CallsKept      uint64
	CallsDiscarded uint64
	LostEvents     uint64
}

// Dropped reports whether unflushed data was discarded at the end of the
// period.
func (s TraceSummary) Dropped() bool {
	return s.BytesDropped > 0
}

// Stats are cumulative recorder counters.
type Stats struct {
	CallsKept      uint64 `json:"calls_kept"`
	CallsDiscarded uint64 `json:"calls_discarded"`
	TracesFlushed  uint64 `json:"traces_flushed"`
	TracesDropped  uint64 `json:"traces_dropped"`
	ChunksFlushed  uint64 `json:"chunks_flushed"`
	BytesFlushed   int64  `json:"bytes_flushed"`
	BytesDropped   int64  `json:"bytes_dropped"`
	LostEvents     uint64 `json:"lost_events"`
	StackGrowths   uint64 `json:"stack_growths"`
	Exceptions     uint64 `json:"exceptions"`
	ExceptionRefs  uint64 `json:"exception_refs"`
}

func (s *Stats) add(t TraceSummary) {
	s.CallsKept += t.CallsKept
	s.CallsDiscarded += t.CallsDiscarded
	s.TracesFlushed += uint64(t.Flushes)
	s.ChunksFlushed += uint64(t.ChunksFlushed)
	s.BytesFlushed += t.BytesFlushed
	s.BytesDropped += t.BytesDropped
	s.LostEvents += t.LostEvents
	if t.Dropped() {
		s.TracesDropped++
	}
}
