package baseconn

import (
	"context"
	"sync"
	"time"
)

// Dispatcher is a cooperative, time-sliced pump that calls send/receive
// on registered connections with a bandwidth budget per tick. Grounded
// on the teacher's chaffHelper goroutine (hkexnet.go/xsnet/net.go),
// generalized from a single connection's timer to a registry of
// connections pumped every tick.
type Dispatcher struct {
	mu    sync.Mutex
	conns map[*Conn]struct{}

	sendBudgetPerSec    int
	receiveBudgetPerSec int
	ticksPerSec         int
}

// NewDispatcher constructs a Dispatcher with the given per-second send
// and receive byte budgets, pumped ticksPerSec times per second.
func NewDispatcher(sendBudgetPerSec, receiveBudgetPerSec, ticksPerSec int) *Dispatcher {
	if ticksPerSec <= 0 {
		ticksPerSec = 30
	}
	return &Dispatcher{
		conns:               make(map[*Conn]struct{}),
		sendBudgetPerSec:    sendBudgetPerSec,
		receiveBudgetPerSec: receiveBudgetPerSec,
		ticksPerSec:         ticksPerSec,
	}
}

// Register adds c to the set of connections pumped each tick.
func (d *Dispatcher) Register(c *Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[c] = struct{}{}
}

// Unregister removes c from the pump set. Call this on dispose.
func (d *Dispatcher) Unregister(c *Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, c)
}

// Run drives the pump until ctx is cancelled. Ordering across
// connections is arbitrary but fair over time.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := time.Second / time.Duration(d.ticksPerSec)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sendSlice := d.sendBudgetPerSec / d.ticksPerSec
	sendCarry := d.sendBudgetPerSec - sendSlice*d.ticksPerSec
	recvSlice := d.receiveBudgetPerSec / d.ticksPerSec
	recvCarry := d.receiveBudgetPerSec - recvSlice*d.ticksPerSec

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sBudget := sendSlice
			rBudget := recvSlice
			if tick == 0 {
				// remainder is folded into the first tick of each
				// second rather than spread across ticks; net budget
				// per second is identical either way.
				sBudget += sendCarry
				rBudget += recvCarry
			}
			tick = (tick + 1) % d.ticksPerSec

			d.mu.Lock()
			conns := make([]*Conn, 0, len(d.conns))
			for c := range d.conns {
				conns = append(conns, c)
			}
			d.mu.Unlock()

			for _, c := range conns {
				_, _ = c.send(sBudget)
				_, _ = c.receive(rBudget)
			}
		}
	}
}
