package store

import (
	"errors"
	"fmt"
)

// Kind classifies store failures.
type Kind int

const (
	// KindTransient covers network and timeout failures. The whole
	// read/subscribe/write is safe to retry for idempotent operations.
	KindTransient Kind = iota + 1
	// KindPermissionDenied is fatal for the path and must surface to the
	// user.
	KindPermissionDenied
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermissionDenied:
		return "permission denied"
	default:
		return "unknown"
	}
}

// Error is a classified store failure tied to the path it occurred on.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s at %q: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewTransientError wraps err as a retryable store failure.
func NewTransientError(path string, err error) error {
	return &Error{Kind: KindTransient, Path: path, Err: err}
}

// NewPermissionError wraps err as a fatal permission failure.
func NewPermissionError(path string, err error) error {
	return &Error{Kind: KindPermissionDenied, Path: path, Err: err}
}

// IsTransient reports whether err is a retryable store failure.
func IsTransient(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindTransient
}

// IsPermissionDenied reports whether err is a permission failure.
func IsPermissionDenied(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindPermissionDenied
}
