package rs8

import "github.com/pkg/errors"

// Kind enumerates the ways the coder can fail.
type Kind int

// nolint: golint
const (
	KindSingularMatrix Kind = iota
	KindDuplicateIndex
	KindInvalidUse
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindSingularMatrix:
		return "singular-matrix"
	case KindDuplicateIndex:
		return "duplicate-index"
	case KindInvalidUse:
		return "invalid-use"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error wraps a coder failure with its Kind.
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
