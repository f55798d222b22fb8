// Package guard runs functions with panic recovery.
//
// A recovered panic is turned into a *PanicError carrying the panic value,
// the goroutine stack and the source location of the panic, so that callers
// on background goroutines can report it instead of crashing the process or
// silently hanging a pipeline.
package guard

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/cockroachdb/errors"
)

// PanicError describes a recovered panic.
type PanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the point of recovery.
	Stack []byte

	// Location is "file:line" of the frame that panicked, if known.
	Location string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("panic: %v", e.Value)
	}
	return fmt.Sprintf("panic at %s: %v", e.Location, e.Value)
}

// Message returns the panic value formatted as a string.
func (e *PanicError) Message() string {
	return fmt.Sprint(e.Value)
}

// Run calls fn and converts a panic into a *PanicError.
func Run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Recovered(r)
		}
	}()
	return fn()
}

// Do is Run for functions that return a value.
func Do[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Recovered(r)
		}
	}()
	return fn()
}

// Recovered builds a *PanicError from a value returned by recover().
// It must be called from the deferred function that recovered, so the
// panicking frame is still on the stack.
func Recovered(r any) *PanicError {
	return &PanicError{
		Value:    r,
		Stack:    debug.Stack(),
		Location: panicLocation(),
	}
}

// AsPanic reports whether err is or wraps a *PanicError.
func AsPanic(err error) (*PanicError, bool) {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// panicLocation finds the first non-runtime frame below runtime.gopanic.
func panicLocation() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	sawPanic := false
	for {
		frame, more := frames.Next()
		if sawPanic && !strings.HasPrefix(frame.Function, "runtime.") {
			return fmt.Sprintf("%s:%d", frame.File, frame.Line)
		}
		if frame.Function == "runtime.gopanic" {
			sawPanic = true
		}
		if !more {
			return ""
		}
	}
}
