package kyccache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_ThresholdAttemptTriggersBan(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(3, time.Hour, time.Hour, clock)

	d := l.Check("u1")
	assert.Equal(t, StateAllowed, d.State)
	assert.Equal(t, 2, d.Remaining)

	d = l.Check("u1")
	assert.Equal(t, StateAllowed, d.State)
	assert.Equal(t, 1, d.Remaining)

	// third attempt reaches the threshold and transitions into banned
	d = l.Check("u1")
	assert.Equal(t, StateRateLimited, d.State)
	assert.True(t, l.IsBanned("u1"))

	// fourth and later attempts inside cooldown are rejected as banned
	d = l.Check("u1")
	assert.Equal(t, StateBanned, d.State)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestLimiter_BanExpiresLazily(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(2, time.Hour, time.Hour, clock)

	l.Check("u1")
	l.Check("u1") // bans
	assert.True(t, l.IsBanned("u1"))

	clock.Advance(time.Hour + time.Second)
	assert.False(t, l.IsBanned("u1"))
	// lifting the ban also cleared the attempt history
	assert.Equal(t, 0, l.TrackedCount())

	d := l.Check("u1")
	assert.Equal(t, StateAllowed, d.State)
}

func TestLimiter_LiftExpiredEager(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(1, time.Hour, time.Hour, clock)

	l.Check("u1") // bans immediately with threshold 1
	l.Check("u2")
	assert.Equal(t, 2, l.BannedCount())

	clock.Advance(time.Hour + time.Second)
	assert.Equal(t, 2, l.LiftExpired())
	assert.Equal(t, 0, l.BannedCount())
	assert.Equal(t, 0, l.TrackedCount())
}

func TestLimiter_ForgiveClearsState(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(3, time.Hour, time.Hour, clock)

	l.Check("u1")
	l.Check("u1")
	l.Ban("u1")

	l.Forgive("u1")
	assert.False(t, l.IsBanned("u1"))
	assert.Equal(t, 3, l.Remaining("u1"))
}

func TestLimiter_BannedAttemptsNotRecorded(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(2, time.Hour, time.Hour, clock)

	l.Check("u1")
	l.Check("u1") // bans
	for i := 0; i < 5; i++ {
		assert.Equal(t, StateBanned, l.Check("u1").State)
	}

	// once cooldown passes, the window restarts clean
	clock.Advance(time.Hour + time.Second)
	d := l.Check("u1")
	assert.Equal(t, StateAllowed, d.State)
	assert.Equal(t, 1, d.Remaining)
}

func TestLimiter_Remaining(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(3, time.Hour, time.Hour, clock)

	assert.Equal(t, 3, l.Remaining("u1"))
	l.Check("u1")
	assert.Equal(t, 2, l.Remaining("u1"))
	l.Ban("u1")
	assert.Equal(t, 0, l.Remaining("u1"))
}
