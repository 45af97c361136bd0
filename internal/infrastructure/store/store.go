// Package store provides the shared persistent key-value store that all
// execution contexts (engine, popup, analysis page) treat as ground truth.
//
// Writes are last-writer-wins; there is no transaction primitive, so
// callers keep data shapes that are safe to overwrite wholesale. The one
// cross-context guarantee is read-after-write: once a Set commits, any
// later Get observes it.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("store: key not found")

// ChangeFunc is invoked with the new value whenever a watched key changes.
// A nil value means the key was deleted.
type ChangeFunc func(key string, value []byte)

// Store is the shared persistent key-value contract.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Watch registers a callback for change notifications on a key.
	// Notifications are best-effort; the store remains the source of
	// truth and watchers must re-read on (re)start.
	Watch(key string, fn ChangeFunc)

	Close() error
}
