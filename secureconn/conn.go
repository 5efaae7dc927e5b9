// Package secureconn implements the handshake-and-record-layer secure
// connection: an authenticated-encryption wrapper around a base
// connection, with optional password-based mutual authentication.
// Grounded on the teacher's hkexnet.Conn/xsnet.Conn Dial/Accept
// negotiation shape and auth.go password verification, with the KEx
// swapped to ECDH P-521 and the record format swapped to the
// running-total-bound AES-256-CBC+HMAC-SHA256 record below.
package secureconn

import (
	"sync/atomic"

	"blitter.com/go/corenet/baseconn"
)

// Conn is a secure connection layered on a baseconn.Conn. New ->
// Handshaking -> Ready -> Closed; Closed is absorbing.
type Conn struct {
	base *baseconn.Conn
	cfg  Config

	state       int32 // atomic State
	status      Status
	terminalErr error
	locks       codecLocks
}

// New constructs a Conn over base, ready to Handshake.
func New(base *baseconn.Conn, cfg Config) *Conn {
	return &Conn{base: base, cfg: cfg, state: int32(StateNew)}
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() State {
	return State(atomic.LoadInt32(&c.state))
}

// Status returns the negotiated parameters and counters. Only
// meaningful once State() == StateReady.
func (c *Conn) Status() *Status { return &c.status }

func (c *Conn) transition(from, to State) bool {
	return atomic.CompareAndSwapInt32(&c.state, int32(from), int32(to))
}

// fail records err as the connection's terminal error and moves it to
// Closed, absorbing any state it was in. Every handshake and record
// failure path routes through here, so it is the one place that needs
// to report to cfg.Logger.
func (c *Conn) fail(err error) error {
	atomic.StoreInt32(&c.state, int32(StateClosed))
	c.terminalErr = err
	c.cfg.logger().Printf("secureconn: connection failed (type=%v): %v", c.cfg.Type, err)
	return err
}

func (c *Conn) requireReady() error {
	if c.State() != StateReady {
		if c.State() == StateClosed && c.terminalErr != nil {
			return c.terminalErr
		}
		return newError(KindNotHandshaked, nil)
	}
	return nil
}
