package main

import (
	"log"

	"blitter.com/go/corenet/cap"
	"blitter.com/go/corenet/transport"
)

// demoKCPKey/demoKCPSalt are the reliable-UDP session key/salt for
// this demo binary, analogous to the teacher's kcpKeyBytes/kcpSaltBytes
// placeholders in hkexnet/kcp.go (real deployments must not hardcode
// these).
var (
	demoKCPKey  = []byte("corenetd-demo-kcp-key")
	demoKCPSalt = []byte("corenetd-demo-kcp-salt")
)

func listen(laddr string, useKCP bool) (accept func() (cap.Cap, error), closeFn func()) {
	if useKCP {
		ln, err := transport.ListenKCP(laddr, demoKCPKey, demoKCPSalt)
		if err != nil {
			log.Fatalf("listen (kcp): %v", err)
		}
		return func() (cap.Cap, error) { return ln.Accept() }, func() { ln.Close() }
	}

	ln, err := transport.ListenTCP("tcp", laddr)
	if err != nil {
		log.Fatalf("listen (tcp): %v", err)
	}
	return func() (cap.Cap, error) { return ln.Accept() }, func() { ln.Close() }
}
