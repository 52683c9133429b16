package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindInvalidInput
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindInvalidInput:
		return "invalid_input"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is a domain error raised deliberately at the point of detection.
// Component names the part of the service that raised it.
type Error struct {
	Kind      Kind
	Message   string
	Component string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, component, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Component: component, Err: cause}
}

func NotFound(component, msg string) *Error {
	return newErr(KindNotFound, component, msg, nil)
}

func Conflict(component, msg string) *Error {
	return newErr(KindConflict, component, msg, nil)
}

func Unauthorized(component, msg string) *Error {
	return newErr(KindUnauthorized, component, msg, nil)
}

func Forbidden(component, msg string) *Error {
	return newErr(KindForbidden, component, msg, nil)
}

func InvalidInput(component, msg string) *Error {
	return newErr(KindInvalidInput, component, msg, nil)
}

func RateLimited(component, msg string) *Error {
	return newErr(KindRateLimited, component, msg, nil)
}

// Internal wraps an unanticipated fault. The cause is kept for logs only.
func Internal(component string, cause error) *Error {
	return newErr(KindInternal, component, "Internal server error", cause)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// WithComponent fills in the component of err when the raiser left it empty.
// Foreign errors are wrapped as Internal.
func WithComponent(err error, component string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Component == "" {
			e.Component = component
		}
		return e
	}
	return Internal(component, err)
}
