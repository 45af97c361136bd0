package gate

import (
	"sync"
	"time"
)

// Guard suppresses repeated redirects of the same tab within a short
// window. Overlapping tab-update and tab-create signals for one physical
// tab would otherwise rewrite it in opposite directions and produce a
// visible refresh loop.
//
// Keyed by tab id, not URL. In-memory only, like Inflight.
type Guard struct {
	mu    sync.Mutex
	tabs  map[int]time.Time
	ttl   time.Duration
	clock func() time.Time
}

// NewGuard creates an empty guard with the given TTL.
func NewGuard(ttl time.Duration) *Guard {
	return &Guard{
		tabs:  make(map[int]time.Time),
		ttl:   ttl,
		clock: time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (g *Guard) WithClock(clock func() time.Time) *Guard {
	g.clock = clock
	return g
}

// Mark records that tabID was just redirected.
func (g *Guard) Mark(tabID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tabs[tabID] = g.clock().Add(g.ttl)
}

// Active reports whether tabID is inside its guard window.
func (g *Guard) Active(tabID int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	deadline, ok := g.tabs[tabID]
	if !ok {
		return false
	}
	if !g.clock().Before(deadline) {
		delete(g.tabs, tabID)
		return false
	}
	return true
}

// Clear removes the marker early, when the tab closes.
func (g *Guard) Clear(tabID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tabs, tabID)
}
