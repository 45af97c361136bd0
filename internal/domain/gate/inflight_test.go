package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInflightAcquireRelease(t *testing.T) {
	f := NewInflight(30 * time.Second)

	assert.True(t, f.TryAcquire("k1"))
	assert.False(t, f.TryAcquire("k1"), "second acquire must be suppressed")
	assert.True(t, f.Pending("k1"))

	f.Release("k1")
	assert.False(t, f.Pending("k1"))
	assert.True(t, f.TryAcquire("k1"), "released key is acquirable again")
}

func TestInflightIndependentKeys(t *testing.T) {
	f := NewInflight(30 * time.Second)

	assert.True(t, f.TryAcquire("a"))
	assert.True(t, f.TryAcquire("b"))
	assert.Equal(t, 2, f.Len())
}

func TestInflightHardTTL(t *testing.T) {
	now := time.Now()
	f := NewInflight(30 * time.Second).WithClock(func() time.Time { return now })

	assert.True(t, f.TryAcquire("k1"))
	assert.False(t, f.TryAcquire("k1"))

	// A marker past its deadline no longer suppresses anything.
	now = now.Add(31 * time.Second)
	assert.False(t, f.Pending("k1"))
	assert.True(t, f.TryAcquire("k1"), "expired marker must not wedge the key")
}
