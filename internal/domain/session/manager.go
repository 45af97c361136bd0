// Package session reads and maintains the authoritative work-session
// record in the shared store.
//
// The gating engine only reads the record; the session-setup flow (popup)
// is the single legitimate writer, reached through Start and End here.
// Expiry is lazy: a session past its end time is treated as inactive even
// while the stored record still says active.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/focusgate/gateway/internal/infrastructure/store"
	"github.com/focusgate/gateway/internal/shared/types"
)

// Manager handles session state in the shared store.
type Manager struct {
	store  store.Store
	logger *zap.Logger
	clock  func() time.Time
}

// NewManager creates a session manager backed by the shared store.
func NewManager(st store.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: st, logger: logger, clock: time.Now}
}

// WithClock overrides the time source, for tests.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// Current returns the stored session record, or nil if none exists or the
// record cannot be read. Storage failures surface as an error so callers
// can fail safe (treat as no session, which blocks).
func (m *Manager) Current(ctx context.Context) (*types.Session, error) {
	data, err := m.store.Get(ctx, types.KeySession)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s types.Session
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !s.Migrate() {
		m.logger.Warn("session record from unknown schema version, ignoring",
			zap.Int("schema_version", s.SchemaVersion))
		return nil, nil
	}
	return &s, nil
}

// Active reports whether a work session is effectively active right now.
// Any failure to read or decode resolves to inactive.
func (m *Manager) Active(ctx context.Context) bool {
	s, err := m.Current(ctx)
	if err != nil {
		m.logger.Warn("session read failed, treating as inactive", zap.Error(err))
		return false
	}
	return s.Active(m.clock())
}

// Start writes a new active session record. Called only by the setup flow.
func (m *Manager) Start(ctx context.Context, domain string, duration time.Duration, qa []types.QA) (*types.Session, error) {
	if domain == "" {
		return nil, fmt.Errorf("session domain required")
	}
	if duration <= 0 {
		return nil, fmt.Errorf("session duration must be positive")
	}

	now := m.clock()
	s := &types.Session{
		SchemaVersion: types.SessionSchemaVersion,
		ID:            uuid.New().String(),
		State:         types.SessionActive,
		StartTime:     now,
		EndTime:       now.Add(duration),
		Domain:        domain,
		Context:       qa,
	}

	data, err := sonic.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(ctx, types.KeySession, data); err != nil {
		return nil, fmt.Errorf("write session: %w", err)
	}

	m.logger.Info("session started",
		zap.String("session_id", s.ID),
		zap.String("domain", domain),
		zap.Time("end_time", s.EndTime))
	return s, nil
}

// End clears the session record. Called by the setup flow or on lapse.
func (m *Manager) End(ctx context.Context) error {
	if err := m.store.Delete(ctx, types.KeySession); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	m.logger.Info("session ended")
	return nil
}

// Watch invokes fn with the new session (nil on end/clear) whenever the
// session record changes in the shared store.
func (m *Manager) Watch(fn func(*types.Session)) {
	m.store.Watch(types.KeySession, func(_ string, value []byte) {
		if value == nil {
			fn(nil)
			return
		}
		var s types.Session
		if err := sonic.Unmarshal(value, &s); err != nil {
			m.logger.Warn("session change event undecodable", zap.Error(err))
			fn(nil)
			return
		}
		if !s.Migrate() {
			fn(nil)
			return
		}
		fn(&s)
	})
}
