// Command corenetc is a minimal demo client: it connects, performs
// the secure handshake, then sends each stdin line and prints the
// server's echoed reply. Grounded on the teacher's demo/client.go
// dial-and-copy shape with the framing/crypto stack swapped in.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"blitter.com/go/corenet/baseconn"
	"blitter.com/go/corenet/cap"
	"blitter.com/go/corenet/credentials"
	"blitter.com/go/corenet/logger"
	"blitter.com/go/corenet/pool"
	"blitter.com/go/corenet/secureconn"
	"blitter.com/go/corenet/transport"
)

var (
	demoKCPKey  = []byte("corenetd-demo-kcp-key")
	demoKCPSalt = []byte("corenetd-demo-kcp-salt")
)

func dial(raddr string, useKCP bool) cap.Cap {
	if useKCP {
		c, err := transport.DialKCP(raddr, demoKCPKey, demoKCPSalt)
		if err != nil {
			log.Fatalf("dial (kcp): %v", err)
		}
		return c
	}
	c, err := transport.DialTCP("tcp", raddr)
	if err != nil {
		log.Fatalf("dial (tcp): %v", err)
	}
	return c
}

func main() {
	var raddr string
	var useKCP bool
	var pwFile string
	var dbg bool

	flag.StringVar(&raddr, "r", "127.0.0.1:4000", "server interface[:port] to connect to")
	flag.BoolVar(&useKCP, "K", false, "dial over KCP (reliable UDP) instead of TCP")
	flag.StringVar(&pwFile, "pw", "", "path to a credentials.PasswordList file for mutual auth (optional)")
	flag.BoolVar(&dbg, "d", false, "debug logging")
	flag.Parse()

	var lg logger.Logger = logger.Discard{}
	if dbg {
		sl, err := logger.NewSyslog(logger.LOG_DAEMON|logger.LOG_DEBUG, "corenetc")
		if err != nil {
			log.Fatalf("open syslog: %v", err)
		}
		lg = sl
	}

	var passwords []string
	if pwFile != "" {
		f, err := os.Open(pwFile)
		if err != nil {
			log.Fatalf("open password list: %v", err)
		}
		pl, err := credentials.LoadPasswordList(f)
		f.Close()
		if err != nil {
			log.Fatalf("load password list: %v", err)
		}
		passwords, err = pl.Passwords("demo")
		if err != nil {
			log.Printf("no passwords provisioned for 'demo': %v", err)
		}
	}

	ctx := context.Background()
	dispatcher := baseconn.NewDispatcher(1<<20, 1<<20, 30)
	go dispatcher.Run(ctx)

	c := dial(raddr, useKCP)
	base := baseconn.New(c, baseconn.Config{
		MaxSendByteCount:    1 << 20,
		MaxReceiveByteCount: 1 << 20,
		Pool:                pool.Default{},
	})
	dispatcher.Register(base)
	defer dispatcher.Unregister(base)

	conn := secureconn.New(base, secureconn.Config{
		Type:      secureconn.TypeConnected,
		Passwords: passwords,
		Logger:    lg,
	})

	if err := conn.Handshake(ctx); err != nil {
		log.Fatalf("handshake failed: %v", err)
	}
	fmt.Println("[handshake complete]")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()

		err := conn.Send(ctx, func(h *pool.Hub) {
			span, spanErr := h.GetSpan(len(line))
			if spanErr != nil {
				return
			}
			n := copy(span, line)
			_ = h.Advance(n)
			h.Complete()
		})
		if err != nil {
			log.Fatalf("send failed: %v", err)
		}

		var reply []byte
		err = conn.Receive(ctx, func(seq [][]byte) {
			for _, b := range seq {
				reply = append(reply, b...)
			}
		})
		if err != nil {
			log.Fatalf("receive failed: %v", err)
		}
		fmt.Printf("echo: %s\n", reply)
	}
}
