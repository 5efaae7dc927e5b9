package transport

import (
	"testing"
	"time"
)

func TestKCPDialListenRoundTrip(t *testing.T) {
	key := []byte("test-session-key")
	salt := []byte("test-session-salt")

	ln, err := ListenKCP("127.0.0.1:0", key, salt)
	if err != nil {
		t.Fatalf("ListenKCP: %v", err)
	}
	defer ln.Close()

	acceptedCh := make(chan *KCPCap, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		acceptedCh <- c
	}()

	client, err := DialKCP(ln.l.Addr().String(), key, salt)
	if err != nil {
		t.Fatalf("DialKCP: %v", err)
	}
	defer client.Close()

	server := <-acceptedCh
	defer server.Close()

	msg := []byte("kcp round trip")
	if _, err := client.Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !server.CanReceive() {
		time.Sleep(5 * time.Millisecond)
	}
	if !server.CanReceive() {
		t.Fatal("server never saw data")
	}
	buf := make([]byte, len(msg))
	n, err := server.Receive(buf)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(buf[:n]) != string(msg) {
		t.Fatalf("got %q, want %q", buf[:n], msg)
	}
}

func TestDeriveKCPBlockCryptDeterministic(t *testing.T) {
	key := []byte("same-key")
	salt := []byte("same-salt")
	b1, err := deriveKCPBlockCrypt(key, salt)
	if err != nil {
		t.Fatalf("deriveKCPBlockCrypt: %v", err)
	}
	b2, err := deriveKCPBlockCrypt(key, salt)
	if err != nil {
		t.Fatalf("deriveKCPBlockCrypt: %v", err)
	}
	plain := make([]byte, 16)
	dst1 := make([]byte, 16)
	dst2 := make([]byte, 16)
	b1.Encrypt(dst1, plain)
	b2.Encrypt(dst2, plain)
	if string(dst1) != string(dst2) {
		t.Fatal("same key/salt produced different BlockCrypt output")
	}
}
