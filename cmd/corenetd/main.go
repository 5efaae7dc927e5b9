// Command corenetd is a minimal demo server: it accepts connections,
// performs the secure handshake, and echoes back whatever it
// receives. Grounded on the teacher's demo/server.go shape (listen,
// accept loop, one goroutine per connection, io.Copy-style echo) with
// the framing/crypto stack swapped in for xsnet/hkexnet.
package main

import (
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
)

func main() {
	var laddr string
	var useKCP bool
	var pwFile string
	var storeFile string
	var loginPass string
	var dbg bool

	flag.StringVar(&laddr, "l", ":4000", "interface[:port] to listen")
	flag.BoolVar(&useKCP, "K", false, "listen over KCP (reliable UDP) instead of TCP")
	flag.StringVar(&pwFile, "pw", "", "path to a credentials.PasswordList file for mutual auth (optional)")
	flag.StringVar(&storeFile, "store", "", "path to a credentials.Store (xspasswd-format) file gating password-list access")
	flag.StringVar(&loginPass, "login-pass", "", "candidate password for the 'demo' principal, checked against -store before the password list is offered")
	flag.BoolVar(&dbg, "d", false, "debug logging")
	flag.Parse()

	var lg logger.Logger = logger.Discard{}
	if dbg {
		sl, err := logger.NewSyslog(logger.LOG_DAEMON|logger.LOG_DEBUG, "corenetd")
		if err != nil {
			log.Fatalf("open syslog: %v", err)
		}
		lg = sl
	}

	if storeFile != "" {
		f, err := os.Open(storeFile)
		if err != nil {
			log.Fatalf("open credentials store: %v", err)
		}
		store, err := credentials.LoadStore(f)
		f.Close()
		if err != nil {
			log.Fatalf("load credentials store: %v", err)
		}
		ok, err := store.Verify("demo", loginPass)
		if err != nil {
			log.Fatalf("verify login: %v", err)
		}
		if !ok {
			log.Fatal("login verification failed for 'demo'; refusing to offer password list")
		}
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
		// Demo only: every accepted connection offers the same
		// principal's candidates. A real deployment would select by
		// peer identity once one is known.
		passwords, err = pl.Passwords("demo")
		if err != nil {
			log.Printf("no passwords provisioned for 'demo': %v", err)
		}
	}

	ctx := context.Background()
	dispatcher := baseconn.NewDispatcher(1<<20, 1<<20, 30)
	go dispatcher.Run(ctx)

	accept, closeFn := listen(laddr, useKCP)
	defer closeFn()
	fmt.Println("Serving on", laddr)

	for {
		c, err := accept()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("Accepted client")
		go serve(ctx, c, dispatcher, passwords, lg)
	}
}

func serve(ctx context.Context, c cap.Cap, d *baseconn.Dispatcher, passwords []string, lg logger.Logger) {
	base := baseconn.New(c, baseconn.Config{
		MaxSendByteCount:    1 << 20,
		MaxReceiveByteCount: 1 << 20,
		Pool:                pool.Default{},
	})
	d.Register(base)
	defer d.Unregister(base)

	conn := secureconn.New(base, secureconn.Config{
		Type:      secureconn.TypeAccepted,
		Passwords: passwords,
		Logger:    lg,
	})

	if err := conn.Handshake(ctx); err != nil {
		fmt.Println("[handshake failed]", err)
		return
	}
	fmt.Println("[handshake complete]")

	for {
		var payload []byte
		err := conn.Receive(ctx, func(seq [][]byte) {
			for _, b := range seq {
				payload = append(payload, b...)
			}
		})
		if err != nil {
			fmt.Println("[client disconnected]", err)
			return
		}

		err = conn.Send(ctx, func(h *pool.Hub) {
			span, spanErr := h.GetSpan(len(payload))
			if spanErr != nil {
				return
			}
			n := copy(span, payload)
			_ = h.Advance(n)
			h.Complete()
		})
		if err != nil {
			fmt.Println("[echo failed]", err)
			return
		}
	}
}
