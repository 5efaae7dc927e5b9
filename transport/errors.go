package transport

import "github.com/pkg/errors"

// Kind enumerates the ways a transport-level cap can fail.
type Kind int

// nolint: golint
const (
	KindDial Kind = iota
	KindListen
	KindAccept
	KindClosed
)

func (k Kind) String() string {
	switch k {
	case KindDial:
		return "dial-error"
	case KindListen:
		return "listen-error"
	case KindAccept:
		return "accept-error"
	case KindClosed:
		return "connection-closed"
	default:
		return "unknown"
	}
}

// Error wraps a transport failure with its Kind.
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
