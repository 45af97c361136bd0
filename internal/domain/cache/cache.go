// Package cache persists analyzer verdicts for the duration of a session.
//
// Verdicts live in two JSON maps in the shared store, one per set
// (blockedUrls / allowedUrls), keyed by url key. The sets are mutually
// exclusive per key: recording a verdict removes the key from the other
// set. Writes are read-modify-write under last-writer-wins; concurrent
// records for the same key are harmless because the analyzer is
// deterministic for a fixed session.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/focusgate/gateway/internal/infrastructure/store"
	"github.com/focusgate/gateway/internal/shared/types"
)

type entrySet map[string]types.ClassificationEntry

// Cache is the session-scoped classification cache.
type Cache struct {
	store  store.Store
	logger *zap.Logger
	clock  func() time.Time
}

// New creates a cache backed by the shared store.
func New(st store.Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: st, logger: logger, clock: time.Now}
}

// WithClock overrides the time source, for tests.
func (c *Cache) WithClock(clock func() time.Time) *Cache {
	c.clock = clock
	return c
}

// Lookup returns the cached entry for urlKey, trying the composite key
// first and falling back to the legacy normalized key for old records.
// Absence and any read failure both return ok=false: an unreadable cache
// must never produce an allow.
func (c *Cache) Lookup(ctx context.Context, urlKey, legacyKey string) (types.ClassificationEntry, bool) {
	for _, storeKey := range []string{types.KeyBlockedURLs, types.KeyAllowedURLs} {
		set, err := c.readSet(ctx, storeKey)
		if err != nil {
			c.logger.Warn("cache read failed", zap.String("set", storeKey), zap.Error(err))
			return types.ClassificationEntry{}, false
		}
		if e, ok := lookupSet(set, urlKey, legacyKey); ok {
			return e, true
		}
	}
	return types.ClassificationEntry{}, false
}

// Record stores a verdict under urlKey, replacing any previous entry and
// removing the key from the opposite set. Last write wins.
func (c *Cache) Record(ctx context.Context, urlKey, canonicalURL, searchQuery string, verdict types.Verdict, reason string) error {
	entry := types.ClassificationEntry{
		SchemaVersion: types.EntrySchemaVersion,
		URLKey:        urlKey,
		CanonicalURL:  canonicalURL,
		Verdict:       verdict,
		Reason:        reason,
		SearchQuery:   searchQuery,
		Timestamp:     c.clock(),
	}

	target, other := types.KeyAllowedURLs, types.KeyBlockedURLs
	if verdict == types.VerdictBlocked {
		target, other = types.KeyBlockedURLs, types.KeyAllowedURLs
	}

	targetSet, err := c.readSet(ctx, target)
	if err != nil {
		return fmt.Errorf("read %s: %w", target, err)
	}
	targetSet[urlKey] = entry
	if err := c.writeSet(ctx, target, targetSet); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	otherSet, err := c.readSet(ctx, other)
	if err != nil {
		return fmt.Errorf("read %s: %w", other, err)
	}
	if _, exists := otherSet[urlKey]; exists {
		delete(otherSet, urlKey)
		if err := c.writeSet(ctx, other, otherSet); err != nil {
			return fmt.Errorf("write %s: %w", other, err)
		}
	}

	c.logger.Debug("verdict recorded",
		zap.String("url_key", urlKey),
		zap.String("verdict", string(verdict)))
	return nil
}

// Clear drops both sets. Invoked on session end so no stale verdict leaks
// into a new session with a different domain or context.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, types.KeyBlockedURLs); err != nil {
		return fmt.Errorf("clear blocked set: %w", err)
	}
	if err := c.store.Delete(ctx, types.KeyAllowedURLs); err != nil {
		return fmt.Errorf("clear allowed set: %w", err)
	}
	c.logger.Info("classification cache cleared")
	return nil
}

func lookupSet(set entrySet, urlKey, legacyKey string) (types.ClassificationEntry, bool) {
	if e, ok := set[urlKey]; ok && e.Migrate() {
		return e, true
	}
	if legacyKey != "" && legacyKey != urlKey {
		if e, ok := set[legacyKey]; ok && e.Migrate() {
			return e, true
		}
	}
	return types.ClassificationEntry{}, false
}

func (c *Cache) readSet(ctx context.Context, key string) (entrySet, error) {
	data, err := c.store.Get(ctx, key)
	if err == store.ErrNotFound {
		return entrySet{}, nil
	}
	if err != nil {
		return nil, err
	}
	var set entrySet
	if err := sonic.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	if set == nil {
		set = entrySet{}
	}
	return set, nil
}

func (c *Cache) writeSet(ctx context.Context, key string, set entrySet) error {
	data, err := sonic.Marshal(set)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, data)
}
