package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromLandmarks_OrderIndependent(t *testing.T) {
	d := NewDeriver(DefaultHexLen)

	a := []Landmark{
		{Type: "eyeLeft", X: 0.3314, Y: 0.4021},
		{Type: "eyeRight", X: 0.6688, Y: 0.4019},
		{Type: "nose", X: 0.5002, Y: 0.5533},
	}
	b := []Landmark{a[2], a[0], a[1]}

	fpA, err := d.FromLandmarks(a)
	require.NoError(t, err)
	fpB, err := d.FromLandmarks(b)
	require.NoError(t, err)

	assert.Equal(t, fpA, fpB)
	assert.Len(t, fpA, DefaultHexLen)
}

func TestFromLandmarks_DistinctFaces(t *testing.T) {
	d := NewDeriver(DefaultHexLen)

	fpA, err := d.FromLandmarks([]Landmark{{Type: "nose", X: 0.5, Y: 0.55}})
	require.NoError(t, err)
	fpB, err := d.FromLandmarks([]Landmark{{Type: "nose", X: 0.51, Y: 0.55}})
	require.NoError(t, err)

	assert.NotEqual(t, fpA, fpB)
}

func TestFromLandmarks_Empty(t *testing.T) {
	d := NewDeriver(DefaultHexLen)
	_, err := d.FromLandmarks(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestFromImage_DiffersPerCapture(t *testing.T) {
	d := NewDeriver(DefaultHexLen)

	fpA, err := d.FromImage([]byte("capture-one"))
	require.NoError(t, err)
	fpB, err := d.FromImage([]byte("capture-two"))
	require.NoError(t, err)

	assert.NotEqual(t, fpA, fpB)
	assert.Len(t, fpA, DefaultHexLen)

	_, err = d.FromImage(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestFromMockEmail_Stable(t *testing.T) {
	d := NewDeriver(DefaultHexLen)

	assert.Equal(t, d.FromMockEmail("user@example.com"), d.FromMockEmail("User@Example.com "))
	assert.NotEqual(t, d.FromMockEmail("a@example.com"), d.FromMockEmail("b@example.com"))
}

func TestNewDeriver_ClampsLength(t *testing.T) {
	d := NewDeriver(0)
	assert.Equal(t, DefaultHexLen, d.HexLen())

	full := NewDeriver(64)
	fp, err := full.FromImage([]byte("x"))
	if assert.NoError(t, err) {
		assert.Len(t, fp, 64)
	}
}
