package core

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the machine-readable class of a failure.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindPermission        Kind = "PERMISSION"
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindStorage           Kind = "STORAGE"
	KindTimeout           Kind = "TIMEOUT"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrPermission        = &Error{Kind: KindPermission}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrStorage           = &Error{Kind: KindStorage}
	ErrTimeout           = &Error{Kind: KindTimeout}
)

// Error is the structured failure returned by every public operation.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op is the operation that failed (e.g. "Transition", "RecordTransaction").
	Op string

	// Message is the human-readable explanation.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. A sentinel (no message) matches any
// error of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validationf(op, format string, args ...any) error {
	return newError(KindValidation, op, nil, format, args...)
}

func Permissionf(op, format string, args ...any) error {
	return newError(KindPermission, op, nil, format, args...)
}

func NotFoundf(op, format string, args ...any) error {
	return newError(KindNotFound, op, nil, format, args...)
}

func InvalidTransitionf(op, format string, args ...any) error {
	return newError(KindInvalidTransition, op, nil, format, args...)
}

// StorageError wraps a backing-store failure. Deadline and cancellation causes are
// reported as TIMEOUT instead.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindTimeout, op, err, "operation timed out")
	}
	return newError(KindStorage, op, err, "storage failure")
}

// KindOf returns the kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// classify converts an arbitrary error escaping a store transaction into the taxonomy.
// Errors that already carry a kind pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return StorageError(op, err)
}
