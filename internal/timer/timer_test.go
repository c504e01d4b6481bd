package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestArmAndExpire(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := New(clock, 5*time.Second)

	deadline := m.Arm("s", time.Minute)
	assert.Equal(t, clock.now.Add(time.Minute), deadline)
	assert.False(t, m.HasExpired("s"))

	clock.Advance(time.Minute + 5*time.Second)
	assert.False(t, m.HasExpired("s"), "grace period still running")

	clock.Advance(time.Millisecond)
	assert.True(t, m.HasExpired("s"))
	assert.True(t, m.HasExpired("s"), "query does not consume the expiry")
}

func TestRearmOverwrites(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := New(clock, 0)

	m.Arm("s", time.Second)
	clock.Advance(2 * time.Second)
	require.True(t, m.HasExpired("s"))

	m.Arm("s", time.Minute)
	assert.False(t, m.HasExpired("s"))
	assert.Equal(t, 1, m.Armed())
}

func TestDisarm(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := New(clock, 0)

	m.Arm("s", time.Second)
	m.Disarm("s")
	clock.Advance(time.Hour)

	assert.False(t, m.HasExpired("s"))
	_, ok := m.Deadline("s")
	assert.False(t, ok)
}

func TestRestoreSurvivesRestart(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	first := New(clock, 0)
	deadline := first.Arm("s", 30*time.Second)

	second := New(clock, 0)
	second.Restore("s", deadline)
	clock.Advance(31 * time.Second)
	assert.True(t, second.HasExpired("s"))
}

func TestSessionsAreIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := New(clock, 0)

	m.Arm("a", time.Second)
	m.Arm("b", time.Hour)
	clock.Advance(time.Minute)

	assert.True(t, m.HasExpired("a"))
	assert.False(t, m.HasExpired("b"))
	assert.False(t, m.HasExpired("unknown"))
}

func TestExpiredChecksArbitraryDeadline(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := New(clock, 5*time.Second)

	assert.False(t, m.Expired(clock.now.Add(-5*time.Second)))
	assert.True(t, m.Expired(clock.now.Add(-6*time.Second)))
	assert.Zero(t, m.Armed())
}

func TestAcceptUntilAddsGrace(t *testing.T) {
	m := New(nil, 5*time.Second)
	deadline := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, deadline.Add(5*time.Second), m.AcceptUntil(deadline))
}

func TestPruneDropsOnlyStaleDeadlines(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := New(clock, 5*time.Second)

	m.Arm("abandoned", time.Minute)
	clock.Advance(2 * time.Hour)
	m.Arm("recent", -time.Minute)
	m.Arm("active", time.Minute)

	assert.Equal(t, 1, m.Prune(time.Hour))
	assert.Equal(t, 2, m.Armed())
	_, ok := m.Deadline("abandoned")
	assert.False(t, ok)
	assert.True(t, m.HasExpired("recent"))
	assert.False(t, m.HasExpired("active"))
}
