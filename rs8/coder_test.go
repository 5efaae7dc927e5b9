package rs8

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	reedsolomon "github.com/klauspost/reedsolomon"
)

func randomPacket(t *testing.T, n int, seed int64) []byte {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	buf := make([]byte, n)
	r.Read(buf)
	return buf
}

func TestEncodeDecodeRoundTripTwoErasures(t *testing.T) {
	const k, n, packetLen = 4, 6, 128

	c, err := New(k, n, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sources := make([][]byte, k)
	for i := range sources {
		sources[i] = randomPacket(t, packetLen, int64(i+1))
	}

	all := make([][]byte, n)
	index := make([]int, n)
	for i := 0; i < n; i++ {
		all[i] = make([]byte, packetLen)
		index[i] = i
	}
	if err := c.Encode(context.Background(), sources, index, all, packetLen); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i := 0; i < k; i++ {
		if !bytes.Equal(all[i], sources[i]) {
			t.Fatalf("systematic row %d not a copy of source", i)
		}
	}

	// Erase packets at positions 0 and 1; recover using parity at 4, 5.
	packets := [][]byte{all[2], all[3], all[4], all[5]}
	recvIndex := []int{2, 3, 4, 5}

	if err := c.Decode(context.Background(), packets, recvIndex, packetLen); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := 0; i < k; i++ {
		if recvIndex[i] != i {
			t.Fatalf("index[%d] = %d, want %d", i, recvIndex[i], i)
		}
		if !bytes.Equal(packets[i], sources[i]) {
			t.Fatalf("recovered packet %d mismatch", i)
		}
	}
}

func TestDecodeDuplicateIndexFails(t *testing.T) {
	const k, n, packetLen = 4, 6, 32
	c, err := New(k, n, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	packets := make([][]byte, k)
	for i := range packets {
		packets[i] = make([]byte, packetLen)
	}
	index := []int{0, 0, 2, 3}

	err = c.Decode(context.Background(), packets, index, packetLen)
	if err == nil {
		t.Fatal("expected error for duplicate index")
	}
	rsErr, ok := err.(*Error)
	if !ok || rsErr.Kind != KindDuplicateIndex {
		t.Fatalf("got %v, want KindDuplicateIndex", err)
	}
}

func TestDecodeCancellation(t *testing.T) {
	const k, n, packetLen = 4, 6, 4096
	c, err := New(k, n, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sources := make([][]byte, k)
	for i := range sources {
		sources[i] = randomPacket(t, packetLen, int64(i+10))
	}
	all := make([][]byte, n)
	index := make([]int, n)
	for i := 0; i < n; i++ {
		all[i] = make([]byte, packetLen)
		index[i] = i
	}
	if err := c.Encode(context.Background(), sources, index, all, packetLen); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	packets := [][]byte{all[2], all[3], all[4], all[5]}
	recvIndex := []int{2, 3, 4, 5}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Decode(ctx, packets, recvIndex, packetLen)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	rsErr, ok := err.(*Error)
	if !ok || rsErr.Kind != KindCancelled {
		t.Fatalf("got %v, want KindCancelled", err)
	}
}

// TestAgainstKlauspostOracle cross-checks that addMul/matrix arithmetic
// produces a usable systematic code by round-tripping the same erasure
// pattern through github.com/klauspost/reedsolomon and comparing
// recovered payloads, not internal matrices (the two codecs are free to
// choose different Vandermonde bases).
func TestAgainstKlauspostOracle(t *testing.T) {
	const k, m, packetLen = 4, 2, 64

	enc, err := reedsolomon.New(k, m)
	if err != nil {
		t.Fatalf("reedsolomon.New: %v", err)
	}

	shards := make([][]byte, k+m)
	for i := 0; i < k; i++ {
		shards[i] = randomPacket(t, packetLen, int64(i+100))
	}
	for i := k; i < k+m; i++ {
		shards[i] = make([]byte, packetLen)
	}
	if err := enc.Encode(shards); err != nil {
		t.Fatalf("oracle Encode: %v", err)
	}

	original := make([][]byte, k)
	for i := range original {
		original[i] = append([]byte(nil), shards[i]...)
	}

	shards[0] = nil
	shards[1] = nil
	if err := enc.Reconstruct(shards); err != nil {
		t.Fatalf("oracle Reconstruct: %v", err)
	}
	for i := 0; i < k; i++ {
		if !bytes.Equal(shards[i], original[i]) {
			t.Fatalf("oracle failed to reconstruct shard %d", i)
		}
	}

	// Now exercise our own coder against the same erasure shape
	// (first two systematic packets lost) to confirm it also recovers.
	c, err := New(k, k+m, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	all := make([][]byte, k+m)
	index := make([]int, k+m)
	for i := range all {
		all[i] = make([]byte, packetLen)
		index[i] = i
	}
	if err := c.Encode(context.Background(), original, index, all, packetLen); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	packets := [][]byte{all[2], all[3], all[4], all[5]}
	recvIndex := []int{2, 3, 4, 5}
	if err := c.Decode(context.Background(), packets, recvIndex, packetLen); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := 0; i < k; i++ {
		if !bytes.Equal(packets[i], original[i]) {
			t.Fatalf("our coder failed to reconstruct packet %d", i)
		}
	}
}
