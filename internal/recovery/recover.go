// Package recovery provides panic recovery for task-body callbacks.
// Ensures a panicking transform, scan, or compile callback surfaces as an
// error instead of taking down the worker pool.
package recovery

import (
	"log/slog"
	"runtime/debug"

	"github.com/hugr-lab/vizql/errs"
)

// ToError wraps a function call with panic recovery.
// If the function panics, converts the panic to an errs.Internal error.
//
// Example:
//
//	err := recovery.ToError(logger, "bin", func() error {
//	    _, _, err := transform.Bin(df, spec)
//	    return err
//	})
func ToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			// Capture stack trace
			stack := debug.Stack()

			// Log the panic with stack trace
			logger.Error("panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(stack),
			)

			err = errs.New(errs.Internal, "%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// ToValue wraps a function that returns a value and error.
// If the function panics, returns the zero value and an errs.Internal error.
func ToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()

			logger.Error("panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(stack),
			)

			var zero T
			result = zero
			err = errs.New(errs.Internal, "%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// Do wraps a void function with panic recovery.
// Logs the panic but doesn't return an error.
// Use for cleanup operations where errors can't be returned (cache eviction
// callbacks, deferred closes).
func Do(logger *slog.Logger, operation string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()

			logger.Error("panic recovered in cleanup",
				"operation", operation,
				"panic", r,
				"stack", string(stack),
			)
		}
	}()

	fn()
}
