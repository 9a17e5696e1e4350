package kyccache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(clock *fakeClock) *SessionRegistry {
	r := NewSessionRegistry()
	r.now = clock.Now
	return r
}

func TestSessionRegistry_CreateAndGet(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)

	created := r.Create("user-1", "prov-123", false)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, SessionCreated, created.Status)

	got, err := r.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "prov-123", got.ProviderSessionID)

	_, err = r.Get("no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRegistry_ResolveOwnership(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	s := r.Create("user-1", "prov-123", false)

	err := r.Resolve(s.ID, "user-2", SessionSucceeded, nil)
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	// ownership mismatch must not change the session
	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionCreated, got.Status)

	result := &SessionResult{Confidence: 91.5, Live: true, Message: "verification successful"}
	require.NoError(t, r.Resolve(s.ID, "user-1", SessionSucceeded, result))

	got, err = r.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionSucceeded, got.Status)
	require.NotNil(t, got.Result)
	assert.InDelta(t, 91.5, got.Result.Confidence, 0.001)
}

func TestSessionRegistry_DeleteOwnership(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	s := r.Create("user-1", "prov-123", false)

	assert.ErrorIs(t, r.Delete(s.ID, "user-2"), ErrNotSessionOwner)
	require.NoError(t, r.Delete(s.ID, "user-1"))

	_, err := r.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Delete(s.ID, "user-1"), ErrSessionNotFound)
}

func TestSessionRegistry_ExpireBefore(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)

	old := r.Create("user-1", "prov-1", false)
	clock.Advance(31 * time.Minute)
	fresh := r.Create("user-1", "prov-2", false)

	expired := r.ExpireBefore(clock.Now().Add(-30 * time.Minute))
	assert.Equal(t, 1, expired)

	// the abandoned pending session stays readable as expired
	got, err := r.Get(old.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionExpired, got.Status)
	_, err = r.Get(fresh.ID)
	assert.NoError(t, err)

	// the next pass removes it now that it is terminal
	expired = r.ExpireBefore(clock.Now().Add(-30 * time.Minute))
	assert.Equal(t, 1, expired)
	_, err = r.Get(old.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRegistry_CountForUser(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)

	r.Create("user-1", "prov-1", false)
	r.Create("user-1", "prov-2", false)
	r.Create("user-2", "prov-3", true)

	assert.Equal(t, 2, r.CountForUser("user-1"))
	assert.Equal(t, 1, r.CountForUser("user-2"))
	assert.Equal(t, 0, r.CountForUser("user-3"))
	assert.Equal(t, 3, r.Len())
}
