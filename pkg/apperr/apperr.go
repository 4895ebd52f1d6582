// Package apperr defines the error taxonomy shared by every storage
// component. Callers branch on the Kind, never on the message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so the API layer can map it to a response.
type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	Conflict
	PayloadTooLarge
	UnsupportedType
	RangeNotSatisfiable
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case PayloadTooLarge:
		return "payload_too_large"
	case UnsupportedType:
		return "unsupported_type"
	case RangeNotSatisfiable:
		return "range_not_satisfiable"
	default:
		return "internal"
	}
}

// Error carries a kind, a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap re-expresses err as an error of the given kind. A nil err yields nil.
func Wrap(kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
