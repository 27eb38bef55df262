package sync

import (
	gosync "sync"
	"time"
)

// Gate throttles an operation to at most once per interval. The first call
// always passes; later calls inside the window are swallowed, not queued.
type Gate struct {
	mu   gosync.Mutex
	last time.Time
	min  time.Duration
	now  func() time.Time
}

// NewGate creates a gate with the given minimum interval between passes.
func NewGate(min time.Duration) *Gate {
	return &Gate{min: min, now: time.Now}
}

// Allow reports whether the caller may proceed, consuming the window if so.
func (g *Gate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.now()
	if !g.last.IsZero() && n.Sub(g.last) < g.min {
		return false
	}
	g.last = n
	return true
}
