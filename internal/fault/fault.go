// Package fault turns panics raised by caller-supplied callbacks into
// ordinary errors so they can be logged and reported instead of taking down
// the goroutine that happened to invoke them.
package fault

import (
	"fmt"
	"runtime/debug"
)

// CallbackError records a panic recovered from a callback.
type CallbackError struct {
	Callback string // e.g. "on_press", "chunk"
	Value    any    // value passed to panic
	Stack    []byte
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback %s panicked: %v", e.Callback, e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *CallbackError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Guard runs fn and converts a panic into a *CallbackError.
// A nil fn is a no-op.
func Guard(callback string, fn func()) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if v := recover(); v != nil {
			err = &CallbackError{Callback: callback, Value: v, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}
