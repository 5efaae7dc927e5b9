package secureconn

import (
	"github.com/pkg/errors"

	"blitter.com/go/corenet/baseconn"
)

// Kind enumerates the ways a secure connection's handshake or record
// codec can fail.
type Kind int

// nolint: golint
const (
	KindNotHandshaked Kind = iota
	KindAuthTypeMismatch
	KindNoCommonAlgorithm
	KindUnsupported
	KindStalePublicKey
	KindPasswordMismatch
	KindSequenceMismatch
	KindMacInvalid
	KindMalformedFrame
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotHandshaked:
		return "not-handshaked"
	case KindAuthTypeMismatch:
		return "auth-type-mismatch"
	case KindNoCommonAlgorithm:
		return "no-common-algorithm"
	case KindUnsupported:
		return "unsupported"
	case KindStalePublicKey:
		return "stale-public-key"
	case KindPasswordMismatch:
		return "password-mismatch"
	case KindSequenceMismatch:
		return "sequence-mismatch"
	case KindMacInvalid:
		return "mac-invalid"
	case KindMalformedFrame:
		return "malformed-frame"
	default:
		return "secure-connection-error"
	}
}

// Error is the uniform wrapper every secure connection failure is
// reported as: a Kind plus, where non-sensitive, the underlying cause.
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

// wrap reports err uniformly as a secure-connection-error. baseconn's
// own connection-closed and cancelled failures are propagated as-is,
// per the spec; everything else is wrapped with cause preserved.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	if be, ok := err.(*baseconn.Error); ok {
		if be.Kind == baseconn.KindConnectionClosed || be.Kind == baseconn.KindCancelled {
			return err
		}
	}
	return newError(KindInternal, err)
}
