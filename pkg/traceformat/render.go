package traceformat

import (
	"fmt"
	"io"
	"strings"
)

// Names resolves symbol ids to names. *symbols.Table satisfies it.
type Names interface {
	Name(id uint32) string
}

// Render writes s as an indented text tree.
func Render(w io.Writer, s *Stream, names Names) error {
	r := renderer{w: w, names: names}
	for _, m := range s.Methods {
		r.method(m, 0)
	}
	return r.err
}

type renderer struct {
	w     io.Writer
	names Names
	err   error
}

func (r *renderer) name(id uint32) string {
	if r.names != nil {
		if n := r.names.Name(id); n != "" {
			return n
		}
	}
	return fmt.Sprintf("#%d", id)
}

func (r *renderer) printf(depth int, format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, "%s"+format+"\n", append([]any{strings.Repeat("  ", depth)}, args...)...)
}

func (r *renderer) method(m *Method, depth int) {
	status := ""
	switch {
	case m.Open:
		status = " (open)"
	case m.Discarded:
		status = " (discarded)"
	}
	r.printf(depth, "%s start=%d duration=%d calls=%d%s", r.name(m.MethodID), m.Start, m.Duration, m.Calls, status)

	if m.Begin != nil {
		r.printf(depth+1, "@trace %s clock=%d", r.name(m.Begin.TraceID), m.Begin.Clock)
	}
	for _, a := range m.Attributes {
		if a.TraceID != 0 {
			r.printf(depth+1, "@attr %s.%s = %v", r.name(a.TraceID), r.name(a.AttrID), a.Value)
		} else {
			r.printf(depth+1, "@attr %s = %v", r.name(a.AttrID), a.Value)
		}
	}
	for _, x := range m.Exceptions {
		r.exception(x, depth+1, "@error")
	}
	for _, c := range m.Children {
		r.method(c, depth+1)
	}
}

func (r *renderer) exception(x *Exception, depth int, label string) {
	if x.Ref {
		r.printf(depth, "%s <same as #%d>", label, x.ID)
		return
	}
	if x.HasMessage {
		r.printf(depth, "%s %s: %s", label, r.name(x.Class), x.Message)
	} else {
		r.printf(depth, "%s %s", label, r.name(x.Class))
	}
	for _, f := range x.Frames {
		r.printf(depth+1, "at %s.%s(%s:%d)", r.name(f.Class), r.name(f.Method), r.name(f.File), f.Line)
	}
	if x.Cause != nil {
		r.exception(x.Cause, depth+1, "caused by")
	}
}
