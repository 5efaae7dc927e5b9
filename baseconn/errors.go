package baseconn

import "github.com/pkg/errors"

// Kind enumerates the ways a base connection can fail.
type Kind int

// nolint: golint
const (
	KindConnectionClosed Kind = iota
	KindFrameTooLong
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConnectionClosed:
		return "connection-closed"
	case KindFrameTooLong:
		return "frame-too-long"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error wraps a base connection failure with its Kind and, where
// available, the underlying cause.
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
