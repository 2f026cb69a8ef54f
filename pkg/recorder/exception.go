package recorder

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
)

// StackFrame is one frame of an exception's stack trace.
type StackFrame struct {
	Class  string
	Method string
	File   string
	Line   int
}

// Throwable is an exception as seen by the recorder.
//
// Identity must be stable for the lifetime of the value and distinct from
// every other live exception; it is what consecutive serializations are
// deduplicated on. A nil Cause ends the chain.
type Throwable interface {
	Identity() uint64
	ClassName() string
	Message() (string, bool)
	StackTrace() []StackFrame
	Cause() Throwable
}

var lastIdentity atomic.Uint64

// Exception is the standard Throwable. Its identity is assigned on first
// use from a process-wide counter.
type Exception struct {
	Class   string
	Text    string
	HasText bool
	Frames  []StackFrame
	Wrapped *Exception

	id atomic.Uint64
}

// NewException creates an exception with a message.
func NewException(class, message string) *Exception {
	return &Exception{Class: class, Text: message, HasText: true}
}

// Identity returns the exception's identity, assigning it on first call.
func (e *Exception) Identity() uint64 {
	if id := e.id.Load(); id != 0 {
		return id
	}
	e.id.CompareAndSwap(0, lastIdentity.Add(1))
	return e.id.Load()
}

// ClassName returns the exception class.
func (e *Exception) ClassName() string { return e.Class }

// Message returns the exception message, if it has one.
func (e *Exception) Message() (string, bool) { return e.Text, e.HasText }

// StackTrace returns the captured frames.
func (e *Exception) StackTrace() []StackFrame { return e.Frames }

// Cause returns the wrapped exception.
func (e *Exception) Cause() Throwable {
	if e.Wrapped == nil {
		return nil
	}
	return e.Wrapped
}

const (
	maxErrorFrames = 32
	maxErrorChain  = 32
)

// FromError converts err into an Exception. The stack of the caller is
// captured for the outermost error; wrapped errors (errors.Unwrap, or the
// first of a joined set) become the cause chain. FromError(nil) returns nil.
func FromError(err error) *Exception {
	if err == nil {
		return nil
	}
	x := errorException(err)
	x.Frames = callers(3)

	cur := x
	for i := 0; i < maxErrorChain; i++ {
		err = unwrapOne(err)
		if err == nil {
			break
		}
		cur.Wrapped = errorException(err)
		cur = cur.Wrapped
	}
	return x
}

func errorException(err error) *Exception {
	return &Exception{Class: fmt.Sprintf("%T", err), Text: err.Error(), HasText: true}
}

func unwrapOne(err error) error {
	if u := errors.Unwrap(err); u != nil {
		return u
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range j.Unwrap() {
			if e != nil {
				return e
			}
		}
	}
	return nil
}

// callers captures the stack starting skip frames above runtime.Callers.
func callers(skip int) []StackFrame {
	pc := make([]uintptr, maxErrorFrames)
	n := runtime.Callers(skip, pc)
	if n == 0 {
		return nil
	}

	frames := make([]StackFrame, 0, n)
	cf := runtime.CallersFrames(pc[:n])
	for {
		f, more := cf.Next()
		class, method := splitFunction(f.Function)
		frames = append(frames, StackFrame{
			Class:  class,
			Method: method,
			File:   filepath.Base(f.File),
			Line:   f.Line,
		})
		if !more {
			break
		}
	}
	return frames
}

// splitFunction splits a qualified Go function name such as
// "example.com/pkg.(*T).Method" into its receiver or package part and the
// final name.
func splitFunction(name string) (string, string) {
	slash := strings.LastIndexByte(name, '/')
	dot := strings.LastIndexByte(name[slash+1:], '.')
	if dot < 0 {
		return "", name
	}
	i := slash + 1 + dot
	return name[:i], name[i+1:]
}
