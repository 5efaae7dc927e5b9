// Package transport provides reference cap.Cap implementations over
// net.Conn-style byte streams: a plain TCP cap and a KCP (reliable
// UDP) cap, mirroring the teacher's protocol-switched Dial/Listen in
// xsnet/net.go.
package transport

import (
	"net"
	"sync"
	"sync/atomic"

	"blitter.com/go/corenet/cap"
)

const tcpReadChunk = 4096

// TCPCap adapts a net.Conn to cap.Cap. Reads happen on a background
// goroutine (the teacher's chaffHelper "spawn one goroutine per Conn"
// idiom, repurposed here to pull bytes off the wire instead of
// injecting chaff) so CanReceive can report a non-blocking hint
// instead of the caller risking a blocking Read.
type TCPCap struct {
	conn net.Conn

	mu      sync.Mutex
	pending []byte

	readCh chan []byte
	errCh  chan error

	connected atomic.Bool
	closeOnce sync.Once
}

// NewTCPCap wraps an already-established net.Conn.
func NewTCPCap(conn net.Conn) *TCPCap {
	t := &TCPCap{
		conn:   conn,
		readCh: make(chan []byte, 16),
		errCh:  make(chan error, 1),
	}
	t.connected.Store(true)
	go t.readLoop()
	return t
}

// DialTCP connects to addr over plain TCP, grounded on the teacher's
// xsnet.Dial "tcp" branch.
func DialTCP(network, addr string) (*TCPCap, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, newError(KindDial, err)
	}
	return NewTCPCap(conn), nil
}

// TCPListener wraps a net.Listener, grounded on the teacher's
// xsnet.HKExListener.
type TCPListener struct {
	l net.Listener
}

// ListenTCP listens on addr, grounded on the teacher's xsnet.Listen
// "tcp" branch.
func ListenTCP(network, addr string) (*TCPListener, error) {
	l, err := net.Listen(network, addr)
	if err != nil {
		return nil, newError(KindListen, err)
	}
	return &TCPListener{l: l}, nil
}

// Accept blocks for the next inbound connection and wraps it as a cap.
func (tl *TCPListener) Accept() (*TCPCap, error) {
	conn, err := tl.l.Accept()
	if err != nil {
		return nil, newError(KindAccept, err)
	}
	return NewTCPCap(conn), nil
}

// Close stops listening for new connections.
func (tl *TCPListener) Close() error { return tl.l.Close() }

// Addr returns the listener's bound address.
func (tl *TCPListener) Addr() net.Addr { return tl.l.Addr() }

func (t *TCPCap) readLoop() {
	buf := make([]byte, tcpReadChunk)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			t.readCh <- chunk
		}
		if err != nil {
			t.connected.Store(false)
			close(t.readCh)
			t.errCh <- err
			return
		}
	}
}

// CanSend reports whether the connection is still open. TCP writes
// are attempted best-effort; a closed peer surfaces as a Send error.
func (t *TCPCap) CanSend() bool { return t.connected.Load() }

// CanReceive reports whether a read chunk is already buffered.
func (t *TCPCap) CanReceive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) > 0 {
		return true
	}
	select {
	case chunk, ok := <-t.readCh:
		if !ok {
			return false
		}
		t.pending = chunk
		return true
	default:
		return false
	}
}

// Send writes span to the underlying net.Conn.
func (t *TCPCap) Send(span []byte) (int, error) {
	n, err := t.conn.Write(span)
	if err != nil {
		return n, newError(KindClosed, err)
	}
	return n, nil
}

// Receive copies already-available bytes into span without blocking.
// It returns 0 bytes, not an error, if nothing is ready yet.
func (t *TCPCap) Receive(span []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) == 0 {
		select {
		case chunk, ok := <-t.readCh:
			if !ok {
				return 0, newError(KindClosed, nil)
			}
			t.pending = chunk
		default:
			return 0, nil
		}
	}

	n := copy(span, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

// IsConnected reports whether the cap still considers itself open.
func (t *TCPCap) IsConnected() bool { return t.connected.Load() }

// Close shuts down the underlying net.Conn.
func (t *TCPCap) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.connected.Store(false)
		err = t.conn.Close()
	})
	return err
}

var _ cap.Cap = (*TCPCap)(nil)
