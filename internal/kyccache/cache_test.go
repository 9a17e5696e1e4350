package kyccache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, clock *fakeClock) *Cache {
	t.Helper()
	c, err := New(Options{
		MaxAttemptsPerUser: 3,
		MaxAttemptsPerFace: 2,
		AttemptWindow:      time.Hour,
		BanDuration:        time.Hour,
		SessionTimeout:     30 * time.Minute,
		ViolationRetention: 24 * time.Hour,
		FingerprintFile:    filepath.Join(t.TempDir(), "face_fingerprints.json"),
	})
	require.NoError(t, err)
	c.Users.now = clock.Now
	c.Users.attempts.now = clock.Now
	c.Faces.now = clock.Now
	c.Faces.attempts.now = clock.Now
	c.Sessions.now = clock.Now
	c.Violations.now = clock.Now
	return c
}

func TestCache_SweepReclaimsExpiredState(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	session := c.Sessions.Create("user-1", "prov-1", false)
	c.Users.Ban("user-1")
	c.Faces.Ban("abcd1234abcd1234")
	c.Violations.Append(DuplicateViolation{User1ID: "user-1", User2ID: "user-2"})

	// nothing is old enough yet
	res := c.Sweep(clock.Now())
	assert.Equal(t, SweepResult{}, res)

	clock.Advance(25 * time.Hour)
	res = c.Sweep(clock.Now())
	assert.Equal(t, 1, res.ExpiredSessions)
	assert.Equal(t, 1, res.LiftedUserBans)
	assert.Equal(t, 1, res.LiftedFaceBans)
	assert.Equal(t, 1, res.PrunedViolations)

	// the abandoned session is first observable as expired
	got, err := c.Sessions.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionExpired, got.Status)

	// and reclaimed for good on the following pass
	res = c.Sweep(clock.Now())
	assert.Equal(t, 1, res.ExpiredSessions)

	stats := c.Stats()
	assert.Equal(t, 0, stats.ActiveSessions)
	assert.Equal(t, 0, stats.BannedUsers)
	assert.Equal(t, 0, stats.BannedFaces)
	assert.Equal(t, 0, stats.DuplicateViolations)
}

func TestCache_BannedUserUnbannedAfterCooldownWithoutNewAttempt(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	c.Users.Check("user-1")
	c.Users.Check("user-1")
	c.Users.Check("user-1") // third attempt bans
	require.True(t, c.Users.IsBanned("user-1"))

	// the sweep alone lifts the ban once the cooldown has elapsed
	clock.Advance(time.Hour + time.Minute)
	c.Sweep(clock.Now())

	assert.False(t, c.Users.IsBanned("user-1"))
	assert.Equal(t, 3, c.Users.Remaining("user-1"))
}

func TestCache_ClearAll(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	require.NoError(t, c.Fingerprints.Store("abcd1234abcd1234", "user-1"))
	c.Sessions.Create("user-1", "prov-1", false)
	c.Users.Check("user-1")
	c.Faces.Ban("abcd1234abcd1234")
	c.Violations.Append(DuplicateViolation{User1ID: "user-1", User2ID: "user-2"})

	require.NoError(t, c.ClearAll())
	assert.Equal(t, Stats{}, c.Stats())
}

func TestViolationLog_PairKeyedUpsert(t *testing.T) {
	clock := newFakeClock()
	l := NewViolationLog()
	l.now = clock.Now

	l.Append(DuplicateViolation{User1ID: "user-2", User2ID: "user-1", Reason: "first"})
	l.Append(DuplicateViolation{User1ID: "user-1", User2ID: "user-2", Reason: "second"})

	// the same pair in either order updates one record
	list := l.List()
	require.Len(t, list, 1)
	assert.Equal(t, "user-1_user-2", list[0].ID)
	assert.Equal(t, "second", list[0].Reason)
}

func TestSweeper_StartStop(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	sw := NewSweeper(c, 10*time.Millisecond)
	sw.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	sw.Stop()

	// Stop is idempotent and returns only after the loop has exited
	sw.Stop()
}
