package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/focusgate/gateway/internal/infrastructure/store"
	"github.com/focusgate/gateway/internal/shared/types"
)

func newTestManager(t *testing.T) (*Manager, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return NewManager(mem, zap.NewNop()), mem
}

func TestStartAndCurrent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Start(ctx, "work", time.Hour, []types.QA{{Question: "task?", Answer: "writing"}})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	got, err := m.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "work", got.Domain)
	assert.True(t, m.Active(ctx))
}

func TestStartValidation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Start(ctx, "", time.Hour, nil)
	assert.Error(t, err)

	_, err = m.Start(ctx, "work", 0, nil)
	assert.Error(t, err)
}

func TestLazyExpiry(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	now := time.Now()
	m.WithClock(func() time.Time { return now })

	_, err := m.Start(ctx, "school", 30*time.Minute, nil)
	require.NoError(t, err)
	assert.True(t, m.Active(ctx))

	// The stored record still says active, but the window has lapsed.
	m.WithClock(func() time.Time { return now.Add(31 * time.Minute) })
	assert.False(t, m.Active(ctx))

	got, err := m.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.SessionActive, got.State)
}

func TestEndClearsSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Start(ctx, "work", time.Hour, nil)
	require.NoError(t, err)
	require.NoError(t, m.End(ctx))

	got, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, m.Active(ctx))
}

func TestActiveWithNoSession(t *testing.T) {
	m, _ := newTestManager(t)
	assert.False(t, m.Active(context.Background()))
}

func TestMigrateUnknownVersionIgnored(t *testing.T) {
	m, mem := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, types.KeySession,
		[]byte(`{"schema_version":99,"state":"active"}`)))

	got, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, m.Active(ctx))
}

func TestWatchTransitions(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	var seen []*types.Session
	m.Watch(func(s *types.Session) { seen = append(seen, s) })

	_, err := m.Start(ctx, "work", time.Hour, nil)
	require.NoError(t, err)
	require.NoError(t, m.End(ctx))

	require.Len(t, seen, 2)
	require.NotNil(t, seen[0])
	assert.Equal(t, types.SessionActive, seen[0].State)
	assert.Nil(t, seen[1])
}
