package gate

import (
	"sync"
	"time"
)

// Inflight tracks url keys with an outstanding classification call. It is
// deliberately in-memory only: when the engine restarts the set resets to
// empty, which is safe because the persistent cache remains ground truth.
//
// Every key carries a hard deadline so a crashed analysis call can never
// wedge its key forever.
type Inflight struct {
	mu    sync.Mutex
	keys  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
	gauge func(n int)
}

// NewInflight creates an empty tracker. ttl is the hard ceiling after
// which a marker is forcibly considered cleared.
func NewInflight(ttl time.Duration) *Inflight {
	return &Inflight{
		keys:  make(map[string]time.Time),
		ttl:   ttl,
		clock: time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (f *Inflight) WithClock(clock func() time.Time) *Inflight {
	f.clock = clock
	return f
}

// WithGauge registers a callback invoked with the marker count after
// every mutation, used to export the count as a gauge.
func (f *Inflight) WithGauge(gauge func(n int)) *Inflight {
	f.gauge = gauge
	return f
}

// report is called with the lock held.
func (f *Inflight) report() {
	if f.gauge != nil {
		f.gauge(len(f.keys))
	}
}

// TryAcquire marks the key as in flight. It returns false if a live marker
// already exists, which is the duplicate-suppression signal: a sibling
// navigation event is already handling this key.
func (f *Inflight) TryAcquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock()
	if deadline, ok := f.keys[key]; ok && now.Before(deadline) {
		return false
	}
	f.keys[key] = now.Add(f.ttl)
	f.report()
	return true
}

// Release clears the marker for key. Called when the classification call
// resolves, success or failure, so retries stay possible.
func (f *Inflight) Release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	f.report()
}

// Pending reports whether a live marker exists for key.
func (f *Inflight) Pending(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	deadline, ok := f.keys[key]
	return ok && f.clock().Before(deadline)
}

// Len returns the number of markers, expired ones included.
func (f *Inflight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}
