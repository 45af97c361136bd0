package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store used for tests and single-box deployments.
// Values survive engine restarts only as long as the process lives; the
// production deployment uses Redis instead.
type Memory struct {
	values   sync.Map
	mu       sync.RWMutex
	watchers map[string][]ChangeFunc
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{watchers: make(map[string][]ChangeFunc)}
}

// Get returns the value for key or ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	val, ok := m.values.Load(key)
	if !ok {
		return nil, ErrNotFound
	}
	b := val.([]byte)
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Set stores the value and notifies watchers synchronously, which gives
// tests deterministic ordering.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.values.Store(key, stored)
	m.notify(key, stored)
	return nil
}

// Delete removes the key and notifies watchers with a nil value.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.values.Delete(key)
	m.notify(key, nil)
	return nil
}

// Watch registers a change callback for key.
func (m *Memory) Watch(key string, fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers[key] = append(m.watchers[key], fn)
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}

func (m *Memory) notify(key string, value []byte) {
	m.mu.RLock()
	fns := m.watchers[key]
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(key, value)
	}
}
