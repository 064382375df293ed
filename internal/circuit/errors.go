package circuit

import (
	"errors"
	"fmt"

	"github.com/filament-ui/filament/internal/table"
)

// ErrorKind categorizes dispatch errors.
type ErrorKind string

const (
	// ErrNoDAG indicates a cyclic dependency: an emitter was asked to emit
	// a value while already emitting one.
	ErrNoDAG ErrorKind = "NO_DAG"

	// ErrWrongValueSchema indicates a payload that does not conform to the
	// emitter's declared schema.
	ErrWrongValueSchema ErrorKind = "WRONG_VALUE_SCHEMA"

	// ErrUserCode indicates a receiver reaction returned an error or
	// panicked.
	ErrUserCode ErrorKind = "USER_CODE_EXCEPTION"
)

// Error is the dispatch error type. Errors detected while handling an event
// cause a full storage rollback and are forwarded once to the circuit's
// error handler; they never cross the event loop as panics.
type Error struct {
	// Emitter identifies the emitter whose dispatch failed.
	Emitter table.Handle

	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause for ErrUserCode.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (emitter=%s)", e.Kind, e.Message, e.Emitter)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNoDAG reports whether err is (or wraps) a cycle detection error.
func IsNoDAG(err error) bool {
	return hasKind(err, ErrNoDAG)
}

// IsWrongValueSchema reports whether err is (or wraps) a schema mismatch.
func IsWrongValueSchema(err error) bool {
	return hasKind(err, ErrWrongValueSchema)
}

// IsUserCode reports whether err is (or wraps) a receiver failure.
func IsUserCode(err error) bool {
	return hasKind(err, ErrUserCode)
}

func hasKind(err error, kind ErrorKind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

func newNoDAGError(emitter table.Handle) *Error {
	return &Error{
		Emitter: emitter,
		Kind:    ErrNoDAG,
		Message: "emitter asked to emit while already emitting",
	}
}

func newSchemaError(emitter table.Handle, want, got string) *Error {
	return &Error{
		Emitter: emitter,
		Kind:    ErrWrongValueSchema,
		Message: fmt.Sprintf("payload does not conform to schema %s (value has schema %s)", want, got),
	}
}

func newUserCodeError(emitter table.Handle, cause error) *Error {
	return &Error{
		Emitter: emitter,
		Kind:    ErrUserCode,
		Message: cause.Error(),
		Err:     cause,
	}
}

// ErrorHandler is the sole error sink of a circuit. The application layer
// decides user-visible behavior; the circuit only guarantees each dispatch
// error is forwarded exactly once, after the rollback completed.
type ErrorHandler interface {
	HandleError(err *Error)
}

// ErrorHandlerFunc adapts a function to the ErrorHandler interface.
type ErrorHandlerFunc func(err *Error)

func (f ErrorHandlerFunc) HandleError(err *Error) { f(err) }

// OverflowError is returned by Settle when the event queue did not drain
// within the configured budget. It indicates a runaway cascade: handled
// events kept enqueueing new ones faster than the budget allowed.
type OverflowError struct {
	Budget int // events processed before giving up
	Queued int // events still queued
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("settle budget exhausted: %d events processed, %d still queued", e.Budget, e.Queued)
}

// IsOverflowError reports whether err is (or wraps) an OverflowError.
func IsOverflowError(err error) bool {
	var oe *OverflowError
	return errors.As(err, &oe)
}
