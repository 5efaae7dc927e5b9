package pool

import (
	"sync"

	"github.com/pkg/errors"
)

// Kind enumerates the invalid-use failure modes a Hub can raise.
type Kind int

// nolint: golint
const (
	KindInvalidUse Kind = iota
)

// Error wraps a Hub failure with its Kind.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return "pool: invalid use"
}

func (e *Error) Unwrap() error { return e.cause }

func invalidUse(msg string) error {
	return &Error{Kind: KindInvalidUse, cause: errors.New(msg)}
}

const defaultBlockSize = 4096

// Hub is a single-producer/single-consumer in-memory byte pipe backed
// by a chain of pool-rented blocks. A single Hub is shared by one
// writer and one reader; bytes produced by the writer in order are
// observed by the reader in the same order.
type Hub struct {
	mu        sync.Mutex
	pool      Pool
	blockSize int

	blocks   [][]byte // rented blocks, in order
	lens     []int    // bytes written into each block (last may be partial)
	written  int64
	read     int64
	lastSpan int // length of the span last vended by GetSpan, for Advance bounds checking
	complete bool
}

// NewHub constructs an empty Hub renting blocks of blockSize bytes
// (defaulted if <= 0) from pool.
func NewHub(pool Pool, blockSize int) *Hub {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	return &Hub{pool: pool, blockSize: blockSize}
}

// WrittenBytes returns the total number of bytes advanced by the writer.
func (h *Hub) WrittenBytes() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.written
}

// RemainBytes returns written-but-not-yet-read bytes: written_bytes - advanced_bytes.
func (h *Hub) RemainBytes() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.written - h.read
}

// GetSpan returns a writable region of at least min(hint, blockSize)
// bytes from the current tail block, renting a new block if necessary.
// Fails with invalid-use if called after Complete.
func (h *Hub) GetSpan(hint int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.complete {
		return nil, invalidUse("GetSpan after Complete")
	}

	need := hint
	if need > h.blockSize {
		need = h.blockSize
	}
	if need < 1 {
		need = 1
	}
	if len(h.blocks) == 0 || len(h.blocks[len(h.blocks)-1])-h.lens[len(h.blocks)-1] < need {
		size := h.blockSize
		if hint > size {
			size = hint
		}
		b := h.pool.Get(size)
		h.blocks = append(h.blocks, b)
		h.lens = append(h.lens, 0)
	}

	tail := len(h.blocks) - 1
	b := h.blocks[tail]
	used := h.lens[tail]
	free := b[used:]
	if hint > 0 && hint < len(free) {
		free = free[:hint]
	}
	h.lastSpan = len(free)
	return free, nil
}

// Advance marks n bytes of the span last vended by GetSpan as written.
// Fails with invalid-use if n exceeds that span.
func (h *Hub) Advance(n int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n < 0 || n > h.lastSpan {
		return invalidUse("Advance exceeds last vended span")
	}
	if len(h.blocks) == 0 {
		return invalidUse("Advance with no span vended")
	}
	tail := len(h.blocks) - 1
	h.lens[tail] += n
	h.written += int64(n)
	h.lastSpan -= n
	return nil
}

// Complete marks the hub as finished writing; subsequent GetSpan calls fail.
func (h *Hub) Complete() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.complete = true
}

// GetSequence returns an ordered slice of read-only chunks covering
// all bytes written but not yet advanced past by the reader.
func (h *Hub) GetSequence() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	var seq [][]byte
	skip := h.read
	var seen int64
	for i, b := range h.blocks {
		blen := int64(h.lens[i])
		if seen+blen <= skip {
			seen += blen
			continue
		}
		start := int64(0)
		if skip > seen {
			start = skip - seen
		}
		seq = append(seq, b[start:h.lens[i]])
		seen += blen
	}
	return seq
}

// ReadAdvance moves the read cursor forward by n bytes. Fails with
// invalid-use if n exceeds RemainBytes.
func (h *Hub) ReadAdvance(n int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < 0 || h.read+n > h.written {
		return invalidUse("ReadAdvance exceeds remaining bytes")
	}
	h.read += n
	return nil
}

// Reset returns all rented blocks to the pool and zeroes both cursors,
// leaving the Hub ready for a fresh write/read cycle.
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range h.blocks {
		h.pool.Put(b)
	}
	h.blocks = nil
	h.lens = nil
	h.written = 0
	h.read = 0
	h.lastSpan = 0
	h.complete = false
}
