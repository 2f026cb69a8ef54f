package recorder

// Flags are per-frame status bits.
type Flags uint8

const (
	// FlagError marks a frame that ended with an error.
	FlagError Flags = 1 << iota
	// FlagSubmitMethod forces the frame (and its ancestors) to be kept.
	FlagSubmitMethod
	// FlagSubmitTrace forces the enclosing trace to be flushed.
	FlagSubmitTrace
	// FlagSplit marks a trace that may be submitted in several parts.
	FlagSplit
)

// traceFlags are the flags callers may set through BeginTrace and
// MarkTraceFlags.
const traceFlags = FlagSubmitMethod | FlagSubmitTrace | FlagSplit

// frame is the bookkeeping for one active call.
type frame struct {
	start   int64  // entry tick
	offset  int64  // absolute buffer offset of the header
	calls   uint64 // completed descendant calls
	traceID uint32 // nonzero on trace roots
	flags   Flags
}

// stack is contiguous frame storage that doubles on demand and never shrinks.
type stack struct {
	frames []frame
	depth  int
}

func newStack(capacity int) stack {
	if capacity <= 0 {
		capacity = DefaultInitialStackDepth
	}
	return stack{frames: make([]frame, capacity)}
}

func (s *stack) full() bool {
	return s.depth == len(s.frames)
}

// grow doubles the capacity, up to max frames when max > 0.
func (s *stack) grow(max int) error {
	n := len(s.frames) * 2
	if max > 0 {
		if len(s.frames) >= max {
			return ErrStackOverflow
		}
		if n > max {
			n = max
		}
	}
	frames := make([]frame, n)
	copy(frames, s.frames[:s.depth])
	s.frames = frames
	return nil
}

func (s *stack) push(f frame) {
	s.frames[s.depth] = f
	s.depth++
}

func (s *stack) pop() frame {
	s.depth--
	return s.frames[s.depth]
}

// top returns the innermost frame, or nil when the stack is empty.
func (s *stack) top() *frame {
	if s.depth == 0 {
		return nil
	}
	return &s.frames[s.depth-1]
}

// findTrace returns the innermost frame carrying traceID, or the innermost
// trace root when traceID is 0.
func (s *stack) findTrace(traceID uint32) *frame {
	for i := s.depth - 1; i >= 0; i-- {
		f := &s.frames[i]
		if f.traceID != 0 && (traceID == 0 || f.traceID == traceID) {
			return f
		}
	}
	return nil
}

func (s *stack) reset() {
	s.depth = 0
}
