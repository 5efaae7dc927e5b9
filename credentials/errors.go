package credentials

import "github.com/pkg/errors"

// Kind enumerates the ways loading or checking credentials can fail.
type Kind int

// nolint: golint
const (
	KindNotFound Kind = iota
	KindMalformed
	KindMismatch
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindMalformed:
		return "malformed"
	case KindMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Error wraps a credentials failure with its Kind.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Kind.String() + ": " + e.cause.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

func newError(k Kind, cause error) error {
	if cause != nil {
		return &Error{Kind: k, cause: errors.WithStack(cause)}
	}
	return &Error{Kind: k}
}
