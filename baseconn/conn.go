// Package baseconn implements a length-prefixed framed connection over
// a cap.Cap, with send/receive state machines pumped by a Dispatcher.
// Grounded on the read/write/lock pattern of the teacher's xsnet.Conn
// and hkexnet.Conn, generalized from a single blocking net.Conn wrapper
// into an explicit non-blocking state machine with separate send and
// receive mutexes and binary semaphores.
package baseconn

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"blitter.com/go/corenet/cap"
	"blitter.com/go/corenet/pool"
)

const headerLen = 4

// WriterAction fills a send hub with the plaintext of one outbound frame.
type WriterAction func(h *pool.Hub)

// ReaderAction observes the read-only sequence of one inbound frame.
type ReaderAction func(seq [][]byte)

// Conn is a framed connection over a cap.Cap. Only one outbound frame
// and one inbound frame are in flight at a time.
type Conn struct {
	cp   cap.Cap
	pool pool.Pool

	maxSendByteCount    uint32
	maxReceiveByteCount uint32

	sendMu           sync.Mutex
	sendHeader       [headerLen]byte
	sendHeaderCursor int // -1: idle, 0..4: header bytes sent
	sendHub          *pool.Hub
	sendSem          chan struct{} // capacity 1, initially permitted (has a token)

	recvMu            sync.Mutex
	recvHeader        [headerLen]byte
	recvHeaderCursor  int // 0..4
	recvContentRemain int64 // -1: awaiting header
	recvHub           *pool.Hub
	recvSem           chan struct{} // capacity 1, initially not permitted (empty)

	sentByteCount     uint64
	receivedByteCount uint64

	closedOnce sync.Once
	closedCh   chan struct{}
	closedErr  atomic.Value // *Error
}

// Config carries the tunables a Conn is constructed with.
type Config struct {
	MaxSendByteCount    uint32 // must be >= 256
	MaxReceiveByteCount uint32 // must be >= 256
	Pool                pool.Pool
}

// New constructs a Conn over cp with the given configuration.
func New(cp cap.Cap, cfg Config) *Conn {
	p := cfg.Pool
	if p == nil {
		p = pool.Default{}
	}
	c := &Conn{
		cp:                  cp,
		pool:                p,
		maxSendByteCount:    cfg.MaxSendByteCount,
		maxReceiveByteCount: cfg.MaxReceiveByteCount,
		sendHeaderCursor:    -1,
		recvContentRemain:   -1,
		sendSem:             make(chan struct{}, 1),
		recvSem:             make(chan struct{}, 1),
		closedCh:            make(chan struct{}),
	}
	c.sendSem <- struct{}{} // send side starts idle/permitted
	c.recvHub = pool.NewHub(p, 0)
	return c
}

// SentByteCount returns the monotone count of bytes sent so far.
func (c *Conn) SentByteCount() uint64 { return atomic.LoadUint64(&c.sentByteCount) }

// ReceivedByteCount returns the monotone count of bytes received so far.
func (c *Conn) ReceivedByteCount() uint64 { return atomic.LoadUint64(&c.receivedByteCount) }

func (c *Conn) fail(k Kind, cause error) error {
	e := newError(k, cause)
	c.closedOnce.Do(func() {
		c.closedErr.Store(e)
		close(c.closedCh)
	})
	if v := c.closedErr.Load(); v != nil {
		return v.(error)
	}
	return e
}

func (c *Conn) terminalError() error {
	if v := c.closedErr.Load(); v != nil {
		return v.(error)
	}
	return newError(KindConnectionClosed, nil)
}

// TryEnqueue attempts to acquire the send semaphore without waiting.
// On success it runs action against the send hub, records the frame
// length, and arms the send side. Returns false if a send is already
// pending.
func (c *Conn) TryEnqueue(action WriterAction) (bool, error) {
	select {
	case <-c.sendSem:
	default:
		return false, nil
	}
	if err := c.doEnqueue(action); err != nil {
		return false, err
	}
	return true, nil
}

// Enqueue awaits the send semaphore then proceeds as TryEnqueue. Fails
// with Cancelled if ctx is done before acquisition.
func (c *Conn) Enqueue(ctx context.Context, action WriterAction) error {
	select {
	case <-c.sendSem:
	case <-c.closedCh:
		return c.terminalError()
	case <-ctx.Done():
		return newError(KindCancelled, ctx.Err())
	}
	return c.doEnqueue(action)
}

func (c *Conn) doEnqueue(action WriterAction) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendHub == nil {
		c.sendHub = pool.NewHub(c.pool, 0)
	}
	action(c.sendHub)
	c.sendHub.Complete()

	length := c.sendHub.WrittenBytes()
	if length > int64(c.maxSendByteCount) {
		c.sendHub.Reset()
		return c.fail(KindFrameTooLong, nil)
	}
	binary.BigEndian.PutUint32(c.sendHeader[:], uint32(length))
	c.sendHeaderCursor = 0
	return nil
}

// TryDequeue attempts to acquire the receive semaphore without
// waiting. On success it runs action against the received payload,
// then resets receive state for the next frame.
func (c *Conn) TryDequeue(action ReaderAction) (bool, error) {
	select {
	case <-c.recvSem:
	default:
		return false, nil
	}
	c.doDequeue(action)
	return true, nil
}

// Dequeue awaits the receive semaphore then proceeds as TryDequeue.
func (c *Conn) Dequeue(ctx context.Context, action ReaderAction) error {
	select {
	case <-c.recvSem:
	case <-c.closedCh:
		return c.terminalError()
	case <-ctx.Done():
		return newError(KindCancelled, ctx.Err())
	}
	c.doDequeue(action)
	return nil
}

func (c *Conn) doDequeue(action ReaderAction) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	action(c.recvHub.GetSequence())
	c.recvHub.Reset()
	c.recvContentRemain = -1
	c.recvHeaderCursor = 0
}

// send is dispatcher-internal: under the send lock, makes up to 5
// bounded passes writing header bytes then payload bytes via cp.Send,
// capping total output at max. Never blocks on the cap.
func (c *Conn) send(max int) (int, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendHeaderCursor == -1 || max <= 0 {
		return 0, nil
	}

	total := 0
	for pass := 0; pass < 5 && total < max; pass++ {
		budget := max - total

		if c.sendHeaderCursor < headerLen {
			want := headerLen - c.sendHeaderCursor
			if want > budget {
				want = budget
			}
			if want <= 0 {
				break
			}
			n, err := c.cp.Send(c.sendHeader[c.sendHeaderCursor : c.sendHeaderCursor+want])
			if err != nil {
				return total, c.fail(KindConnectionClosed, err)
			}
			if n <= 0 {
				break
			}
			c.sendHeaderCursor += n
			total += n
			if n < want {
				break
			}
			continue
		}

		if c.sendHub.RemainBytes() == 0 {
			c.sendHub.Reset()
			c.sendHeaderCursor = -1
			c.armSend()
			break
		}

		seq := c.sendHub.GetSequence()
		if len(seq) == 0 {
			c.sendHub.Reset()
			c.sendHeaderCursor = -1
			c.armSend()
			break
		}
		chunk := seq[0]
		want := len(chunk)
		if want > budget {
			want = budget
		}
		if want <= 0 {
			break
		}
		n, err := c.cp.Send(chunk[:want])
		if err != nil {
			return total, c.fail(KindConnectionClosed, err)
		}
		if n <= 0 {
			break
		}
		if err := c.sendHub.ReadAdvance(int64(n)); err != nil {
			return total, c.fail(KindConnectionClosed, err)
		}
		total += n
		if n < want {
			break
		}
	}

	atomic.AddUint64(&c.sentByteCount, uint64(total))
	return total, nil
}

func (c *Conn) armSend() {
	select {
	case c.sendSem <- struct{}{}:
	default:
	}
}

// receive is dispatcher-internal: under the receive lock, up to 5
// passes reading header then payload bytes, never blocking on the cap.
func (c *Conn) receive(max int) (int, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	if max <= 0 {
		return 0, nil
	}

	total := 0
	for pass := 0; pass < 5 && total < max; pass++ {
		budget := max - total

		if c.recvContentRemain == -1 {
			want := headerLen - c.recvHeaderCursor
			if want > budget {
				want = budget
			}
			if want <= 0 {
				break
			}
			n, err := c.cp.Receive(c.recvHeader[c.recvHeaderCursor : c.recvHeaderCursor+want])
			if err != nil {
				return total, c.fail(KindConnectionClosed, err)
			}
			if n <= 0 {
				break
			}
			c.recvHeaderCursor += n
			total += n
			if c.recvHeaderCursor == headerLen {
				length := binary.BigEndian.Uint32(c.recvHeader[:])
				if length > c.maxReceiveByteCount {
					return total, c.fail(KindFrameTooLong, nil)
				}
				c.recvContentRemain = int64(length)
				c.recvHeaderCursor = 0
			}
			if n < want {
				break
			}
			continue
		}

		if c.recvContentRemain == 0 {
			c.recvHub.Complete()
			select {
			case c.recvSem <- struct{}{}:
			default:
			}
			break
		}

		want := int(c.recvContentRemain)
		if want > budget {
			want = budget
		}
		if want <= 0 {
			break
		}
		span, err := c.recvHub.GetSpan(want)
		if err != nil {
			return total, c.fail(KindConnectionClosed, err)
		}
		if len(span) > want {
			span = span[:want]
		}
		n, err := c.cp.Receive(span)
		if err != nil {
			return total, c.fail(KindConnectionClosed, err)
		}
		if n <= 0 {
			break
		}
		if err := c.recvHub.Advance(n); err != nil {
			return total, c.fail(KindConnectionClosed, err)
		}
		c.recvContentRemain -= int64(n)
		total += n
		if n < want {
			break
		}
	}

	atomic.AddUint64(&c.receivedByteCount, uint64(total))
	return total, nil
}
