package kyccache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock drives the package-private now hooks in tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestTracker(window time.Duration, clock *fakeClock) *AttemptTracker {
	tr := NewAttemptTracker(window)
	tr.now = clock.Now
	return tr
}

func newTestLimiter(max int, window, cooldown time.Duration, clock *fakeClock) *Limiter {
	l := NewLimiter(max, window, cooldown)
	l.now = clock.Now
	l.attempts.now = clock.Now
	return l
}

func TestAttemptTracker_UnknownSubjectCountsZero(t *testing.T) {
	tr := newTestTracker(time.Hour, newFakeClock())
	assert.Equal(t, 0, tr.CountRecent("nobody"))
}

func TestAttemptTracker_WindowPruning(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(time.Hour, clock)

	tr.Record("u1")
	clock.Advance(30 * time.Minute)
	tr.Record("u1")
	assert.Equal(t, 2, tr.CountRecent("u1"))

	// first attempt falls out of the trailing hour
	clock.Advance(31 * time.Minute)
	assert.Equal(t, 1, tr.CountRecent("u1"))

	clock.Advance(time.Hour)
	assert.Equal(t, 0, tr.CountRecent("u1"))
	assert.Equal(t, 0, tr.Tracked())
}

func TestAttemptTracker_ClearAndPruneAll(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(time.Hour, clock)

	tr.Record("u1")
	tr.Record("u2")
	tr.Clear("u1")
	assert.Equal(t, 0, tr.CountRecent("u1"))
	assert.Equal(t, 1, tr.CountRecent("u2"))

	clock.Advance(2 * time.Hour)
	tr.PruneAll()
	assert.Equal(t, 0, tr.Tracked())
}
