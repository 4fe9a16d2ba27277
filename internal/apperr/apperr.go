// Package apperr is the failure taxonomy shared by every layer of the core.
// Store implementations return these errors structurally; the HTTP layer maps
// them to status codes without ever inspecting error text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidArgument
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a classified failure. Msg is safe to show to the caller for the
// kinds that carry a reason (NotFound, Conflict, InvalidArgument); Err keeps
// the underlying cause for logs only.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound)
// holds for every not-found failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrInternal        = &Error{Kind: KindInternal, Msg: "internal error"}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized, Msg: "unauthorized"}
	ErrForbidden       = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrNotFound        = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict        = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument, Msg: "invalid argument"}
	ErrUnavailable     = &Error{Kind: KindUnavailable, Msg: "unavailable"}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(msg string) *Error        { return New(KindNotFound, msg) }
func Conflict(msg string) *Error        { return New(KindConflict, msg) }
func InvalidArgument(msg string) *Error { return New(KindInvalidArgument, msg) }
func Forbidden(msg string) *Error       { return New(KindForbidden, msg) }

func Unavailable(err error) *Error {
	return Wrap(KindUnavailable, err, "backend unavailable")
}

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the Kind of err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// IsClassified reports whether err already carries a taxonomy kind.
func IsClassified(err error) bool {
	_, ok := As(err)
	return ok
}

// IsRetryable returns true if the whole operation may be retried as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
