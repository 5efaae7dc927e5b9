package secureconn

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"blitter.com/go/corenet/baseconn"
	"blitter.com/go/corenet/cap"
	"blitter.com/go/corenet/pool"
)

// syncBuf and memCap mirror baseconn's test doubles; kept package-local
// since baseconn's are unexported to their own package.
type syncBuf struct {
	mu  sync.Mutex
	buf []byte
}

func (s *syncBuf) write(p []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, p...)
	return len(p)
}

func (s *syncBuf) read(p []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n
}

type memCap struct {
	out *syncBuf
	in  *syncBuf
}

func newMemCapPair() (cap.Cap, cap.Cap) {
	ab := &syncBuf{}
	ba := &syncBuf{}
	return &memCap{out: ab, in: ba}, &memCap{out: ba, in: ab}
}

func (m *memCap) CanSend() bool     { return true }
func (m *memCap) CanReceive() bool  { return true }
func (m *memCap) IsConnected() bool { return true }
func (m *memCap) Send(span []byte) (int, error) {
	return m.out.write(span), nil
}
func (m *memCap) Receive(span []byte) (int, error) {
	return m.in.read(span), nil
}

func newSecurePair(t *testing.T, aPasswords, bPasswords []string) (*Conn, *Conn, *baseconn.Conn, *baseconn.Conn) {
	t.Helper()
	capA, capB := newMemCapPair()
	bcfg := baseconn.Config{MaxSendByteCount: 8192, MaxReceiveByteCount: 8192, Pool: pool.Default{}}
	baseA := baseconn.New(capA, bcfg)
	baseB := baseconn.New(capB, bcfg)

	a := New(baseA, Config{Type: TypeConnected, Passwords: aPasswords, BufferPool: pool.Default{}})
	b := New(baseB, Config{Type: TypeAccepted, Passwords: bPasswords, BufferPool: pool.Default{}})
	return a, b, baseA, baseB
}

// runDispatch registers the base connections with a Dispatcher ticking
// 200 times per second and runs it in the background until ctx is
// cancelled.
func runDispatch(ctx context.Context, conns ...*baseconn.Conn) *baseconn.Dispatcher {
	d := baseconn.NewDispatcher(1<<20, 1<<20, 200)
	for _, c := range conns {
		d.Register(c)
	}
	go d.Run(ctx)
	return d
}

func TestHandshakeNoAuth(t *testing.T) {
	a, b, baseA, baseB := newSecurePair(t, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runDispatch(ctx, baseA, baseB)

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() { defer wg.Done(); errA = a.Handshake(ctx) }()
	go func() { defer wg.Done(); errB = b.Handshake(ctx) }()
	wg.Wait()

	if errA != nil || errB != nil {
		t.Fatalf("handshake failed: a=%v b=%v", errA, errB)
	}
	if a.State() != StateReady || b.State() != StateReady {
		t.Fatalf("states not ready: a=%v b=%v", a.State(), b.State())
	}
	if a.Status().myCryptoKey != b.Status().peerCryptoKey {
		t.Fatal("mirror-image crypto key invariant violated (a.my != b.peer)")
	}
	if a.Status().peerCryptoKey != b.Status().myCryptoKey {
		t.Fatal("mirror-image crypto key invariant violated (a.peer != b.my)")
	}
	if a.Status().myHmacKey != b.Status().peerHmacKey || a.Status().peerHmacKey != b.Status().myHmacKey {
		t.Fatal("mirror-image hmac key invariant violated")
	}
}

func TestSecureRoundTripHello(t *testing.T) {
	a, b, baseA, baseB := newSecurePair(t, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runDispatch(ctx, baseA, baseB)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = a.Handshake(ctx) }()
	go func() { defer wg.Done(); _ = b.Handshake(ctx) }()
	wg.Wait()

	if err := a.Send(ctx, func(h *pool.Hub) {
		span, _ := h.GetSpan(5)
		copy(span, []byte("hello"))
		_ = h.Advance(5)
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var got []byte
	if err := b.Receive(ctx, func(seq [][]byte) {
		for _, c := range seq {
			got = append(got, c...)
		}
	}); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q, want %q", got, "hello")
	}
	if b.Status().TotalReceivedSize() != 32 {
		t.Fatalf("total received size = %d, want 32", b.Status().TotalReceivedSize())
	}
}

func TestPasswordAuthenticationSuccess(t *testing.T) {
	a, b, baseA, baseB := newSecurePair(t, []string{"x", "y"}, []string{"y", "z"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runDispatch(ctx, baseA, baseB)

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() { defer wg.Done(); errA = a.Handshake(ctx) }()
	go func() { defer wg.Done(); errB = b.Handshake(ctx) }()
	wg.Wait()

	if errA != nil || errB != nil {
		t.Fatalf("handshake failed: a=%v b=%v", errA, errB)
	}
	if len(a.Status().MatchedPasswords) != 1 || a.Status().MatchedPasswords[0] != "y" {
		t.Fatalf("a matched passwords = %v, want [y]", a.Status().MatchedPasswords)
	}
	if len(b.Status().MatchedPasswords) != 1 || b.Status().MatchedPasswords[0] != "y" {
		t.Fatalf("b matched passwords = %v, want [y]", b.Status().MatchedPasswords)
	}
}

func TestPasswordAuthenticationFailure(t *testing.T) {
	a, b, baseA, baseB := newSecurePair(t, []string{"x"}, []string{"z"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runDispatch(ctx, baseA, baseB)

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() { defer wg.Done(); errA = a.Handshake(ctx) }()
	go func() { defer wg.Done(); errB = b.Handshake(ctx) }()
	wg.Wait()

	if errA == nil || errB == nil {
		t.Fatal("expected password-mismatch abort on both sides")
	}
	if a.State() != StateClosed || b.State() != StateClosed {
		t.Fatalf("expected both sides Closed, got a=%v b=%v", a.State(), b.State())
	}
}

func TestReceiveSequenceMismatchOnCounterDrift(t *testing.T) {
	a, b, baseA, baseB := newSecurePair(t, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runDispatch(ctx, baseA, baseB)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = a.Handshake(ctx) }()
	go func() { defer wg.Done(); _ = b.Handshake(ctx) }()
	wg.Wait()

	// Force a sequence-mismatch by bumping the receiver's expected
	// running total out from under it before the frame arrives: this
	// exercises the same code path a reordered/dropped frame would
	// (declared_total != locally maintained total).
	b.status.totalReceivedSize += 1

	if err := a.Send(ctx, func(h *pool.Hub) {
		span, _ := h.GetSpan(3)
		copy(span, []byte("abc"))
		_ = h.Advance(3)
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	err := b.Receive(ctx, func(seq [][]byte) {})
	se, ok := err.(*Error)
	if !ok || se.Kind != KindSequenceMismatch {
		t.Fatalf("expected sequence-mismatch, got %v", err)
	}
}

func TestReceiveMacInvalidOnWrongHmacKey(t *testing.T) {
	a, b, baseA, baseB := newSecurePair(t, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runDispatch(ctx, baseA, baseB)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = a.Handshake(ctx) }()
	go func() { defer wg.Done(); _ = b.Handshake(ctx) }()
	wg.Wait()

	// Flip a key byte on a's side so the MAC it computes can never
	// verify against b's peer_hmac_key, exercising mac-invalid without
	// needing to intercept bytes mid-wire.
	a.status.myHmacKey[0] ^= 0xFF

	if err := a.Send(ctx, func(h *pool.Hub) {
		span, _ := h.GetSpan(3)
		copy(span, []byte("abc"))
		_ = h.Advance(3)
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	err := b.Receive(ctx, func(seq [][]byte) {})
	se, ok := err.(*Error)
	if !ok || se.Kind != KindMacInvalid {
		t.Fatalf("expected mac-invalid, got %v", err)
	}
}
