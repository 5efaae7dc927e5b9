// Package pool provides an abstract pooled byte-buffer allocator and a
// single-writer/single-reader in-memory byte hub built on top of it.
package pool

import (
	pbpool "github.com/libp2p/go-buffer-pool"
)

// Pool rents and returns byte slices. Implementations may return a
// slice larger than requested; callers must track the length they
// actually asked for separately. Put must tolerate a nil slice.
type Pool interface {
	Get(size int) []byte
	Put([]byte)
}

// Default is a Pool backed by github.com/libp2p/go-buffer-pool's
// global BufferPool, the same pooled-[]byte mechanism used elsewhere
// in the wider dependency pack for this exact concern.
type Default struct{}

// Get rents a buffer of at least size bytes.
func (Default) Get(size int) []byte {
	return pbpool.Get(size)
}

// Put returns a buffer previously obtained from Get.
func (Default) Put(b []byte) {
	if b == nil {
		return
	}
	pbpool.Put(b)
}

// Secure is a Pool that zeroes buffers on both rent and return, for
// use where key material or plaintext passes through the pool.
type Secure struct{}

// Get rents a buffer of at least size bytes, pre-zeroed.
func (Secure) Get(size int) []byte {
	b := pbpool.Get(size)
	for i := range b {
		b[i] = 0
	}
	return b
}

// Put zeroes the buffer's full capacity, then returns it to the pool.
func (Secure) Put(b []byte) {
	if b == nil {
		return
	}
	full := b[:cap(b)]
	for i := range full {
		full[i] = 0
	}
	pbpool.Put(b)
}
