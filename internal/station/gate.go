package station

import "sync"

// Gate is a first-come-first-served mutual exclusion lock. On Leave the
// gate is handed straight to the longest waiter, so a caller arriving
// later can never overtake one already queued.
type Gate struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// Enter blocks until the caller owns the gate.
func (g *Gate) Enter() {
	g.mu.Lock()
	if !g.held {
		g.held = true
		g.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	g.waiters = append(g.waiters, ch)
	g.mu.Unlock()
	<-ch
}

// Leave releases the gate. It must be called by the current owner.
func (g *Gate) Leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		panic("station: Leave of unheld gate")
	}
	if len(g.waiters) == 0 {
		g.held = false
		return
	}
	next := g.waiters[0]
	g.waiters[0] = nil
	g.waiters = g.waiters[1:]
	close(next)
}

// Waiting returns the number of callers blocked in Enter.
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}
