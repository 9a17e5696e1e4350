package kyccache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*FingerprintStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "face_fingerprints.json")
	s, err := NewFingerprintStore(path)
	require.NoError(t, err)
	return s, path
}

func TestFingerprintStore_StoreAndLookup(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Store("abcd1234abcd1234", "user-1"))

	owner, ok := s.Lookup("abcd1234abcd1234")
	assert.True(t, ok)
	assert.Equal(t, "user-1", owner)

	_, ok = s.Lookup("ffff0000ffff0000")
	assert.False(t, ok)
}

func TestFingerprintStore_PersistsAcrossReload(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.Store("abcd1234abcd1234", "user-1"))
	require.NoError(t, s.Store("1111222233334444", "user-2"))

	reloaded, err := NewFingerprintStore(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())

	owner, ok := reloaded.Lookup("1111222233334444")
	assert.True(t, ok)
	assert.Equal(t, "user-2", owner)
}

func TestFingerprintStore_AtMostOneOwner(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Store("abcd1234abcd1234", "user-1"))
	require.NoError(t, s.Store("abcd1234abcd1234", "user-2"))

	owner, ok := s.Lookup("abcd1234abcd1234")
	assert.True(t, ok)
	assert.Equal(t, "user-2", owner)
	assert.Equal(t, 1, s.Len())
}

func TestFingerprintStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face_fingerprints.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFingerprintStore(path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	// the store stays usable and the next flush repairs the file
	require.NoError(t, s.Store("abcd1234abcd1234", "user-1"))
	reloaded, err := NewFingerprintStore(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
}

func TestFingerprintStore_DeleteByUser(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.Store("abcd1234abcd1234", "user-1"))
	require.NoError(t, s.Store("1111222233334444", "user-2"))

	require.NoError(t, s.DeleteByUser("user-1"))
	_, ok := s.Lookup("abcd1234abcd1234")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())

	// removal is durable
	reloaded, err := NewFingerprintStore(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
}

func TestFingerprintStore_FingerprintOf(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Store("abcd1234abcd1234", "user-1"))

	fp, ok := s.FingerprintOf("user-1")
	assert.True(t, ok)
	assert.Equal(t, "abcd1234abcd1234", fp)

	_, ok = s.FingerprintOf("user-9")
	assert.False(t, ok)
}

func TestFingerprintStore_Clear(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.Store("abcd1234abcd1234", "user-1"))

	require.NoError(t, s.Clear())
	assert.Equal(t, 0, s.Len())

	reloaded, err := NewFingerprintStore(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Len())
}
