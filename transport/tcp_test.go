package transport

import (
	"net"
	"testing"
	"time"
)

func pipeCapPair() (*TCPCap, *TCPCap) {
	a, b := net.Pipe()
	return NewTCPCap(a), NewTCPCap(b)
}

func waitUntil(t *testing.T, deadline time.Duration, fn func() bool) bool {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if fn() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return fn()
}

func TestTCPCapSendReceive(t *testing.T) {
	a, b := pipeCapPair()
	defer a.Close()
	defer b.Close()

	msg := []byte("hello over tcp cap")
	go func() {
		if _, err := a.Send(msg); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	if !waitUntil(t, time.Second, b.CanReceive) {
		t.Fatal("CanReceive never went true")
	}

	buf := make([]byte, len(msg))
	got := 0
	for got < len(msg) {
		n, err := b.Receive(buf[got:])
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		got += n
	}
	if string(buf) != string(msg) {
		t.Fatalf("got %q, want %q", buf, msg)
	}
}

func TestTCPCapIsConnectedAfterClose(t *testing.T) {
	a, b := pipeCapPair()
	defer b.Close()

	if !a.IsConnected() {
		t.Fatal("expected IsConnected true before close")
	}
	a.Close()
	if a.IsConnected() {
		t.Fatal("expected IsConnected false after close")
	}
}

func TestTCPDialListenRoundTrip(t *testing.T) {
	ln, err := ListenTCP("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer ln.Close()

	acceptedCh := make(chan *TCPCap, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		acceptedCh <- c
	}()

	client, err := DialTCP("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer client.Close()

	server := <-acceptedCh
	defer server.Close()

	msg := []byte("round trip")
	if _, err := client.Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if !waitUntil(t, time.Second, server.CanReceive) {
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
