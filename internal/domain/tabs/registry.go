// Package tabs tracks the browser tabs currently known to the gateway.
//
// The registry mirrors the extension's view of the tab strip: every
// bridge event that mentions a tab updates it, and the synchronizer reads
// it back when a session transition forces every open tab through the
// gating engine again.
package tabs

import (
	"sort"
	"sync"
	"time"
)

// Tab is one open browser tab.
type Tab struct {
	ID        int       `json:"id"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is a thread-safe tab table.
type Registry struct {
	mu    sync.RWMutex
	tabs  map[int]Tab
	clock func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tabs:  make(map[int]Tab),
		clock: time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (r *Registry) WithClock(clock func() time.Time) *Registry {
	r.clock = clock
	return r
}

// Upsert records the latest URL seen for tabID.
func (r *Registry) Upsert(tabID int, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tabs[tabID] = Tab{ID: tabID, URL: url, UpdatedAt: r.clock()}
}

// Remove drops a closed tab.
func (r *Registry) Remove(tabID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, tabID)
}

// Get returns the tab, if known.
func (r *Registry) Get(tabID int) (Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tabs[tabID]
	return t, ok
}

// Snapshot returns all known tabs ordered by id.
func (r *Registry) Snapshot() []Tab {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tab, 0, len(r.tabs))
	for _, t := range r.tabs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of known tabs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}

// Reset clears the registry, used when the bridge disconnects and the
// tab strip can no longer be trusted.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tabs = make(map[int]Tab)
}
