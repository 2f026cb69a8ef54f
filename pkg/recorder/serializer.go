package recorder

import "mercator-hq/calltrace/pkg/traceformat"

// maxCauseDepth bounds cause chains; anything deeper is cut off.
const maxCauseDepth = 64

// exceptionSerializer writes exceptions and remembers the identity of the
// last one written. Writing the same exception again right away produces a
// reference record instead of a full one. Any other exception in between
// replaces the remembered identity.
type exceptionSerializer struct {
	enc  *traceformat.Encoder
	last uint64
}

// process writes t and reports whether a reference record was written.
func (s *exceptionSerializer) process(t Throwable) (bool, error) {
	x := s.build(t, 0)
	if err := s.enc.Exception(x); err != nil {
		return false, err
	}
	s.last = t.Identity()
	return x.Ref, nil
}

func (s *exceptionSerializer) build(t Throwable, depth int) *traceformat.Exception {
	id := t.Identity()
	if id != 0 && id == s.last {
		return &traceformat.Exception{ID: id, Ref: true}
	}

	x := &traceformat.Exception{ID: id, Class: s.enc.Intern(t.ClassName())}
	x.Message, x.HasMessage = t.Message()

	if frames := t.StackTrace(); len(frames) > 0 {
		x.Frames = make([]traceformat.Frame, len(frames))
		for i, f := range frames {
			x.Frames[i] = traceformat.Frame{
				Class:  s.enc.Intern(f.Class),
				Method: s.enc.Intern(f.Method),
				File:   s.enc.Intern(f.File),
				Line:   int64(f.Line),
			}
		}
	}

	if cause := t.Cause(); cause != nil && depth < maxCauseDepth {
		x.Cause = s.build(cause, depth+1)
	}
	return x
}
