package fingerprint

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultHexLen is the hex-prefix length of a derived fingerprint. The short
// prefix is inherited from the deployed system; widening it changes matching
// behavior for fingerprints already on disk, so it is configurable rather
// than fixed.
const DefaultHexLen = 16

var ErrEmptyInput = errors.New("fingerprint: empty input")

// Landmark is a named facial landmark point reported by the liveness provider.
type Landmark struct {
	Type string
	X    float64
	Y    float64
}

// Deriver turns liveness-provider output into face fingerprints.
type Deriver struct {
	hexLen int
}

func NewDeriver(hexLen int) *Deriver {
	if hexLen <= 0 || hexLen > sha256.Size*2 {
		hexLen = DefaultHexLen
	}
	return &Deriver{hexLen: hexLen}
}

// FromLandmarks derives a fingerprint from facial landmark geometry. Each
// landmark is rendered as "{type}:{x:.3f},{y:.3f}"; the rendered strings are
// sorted so the result does not depend on provider ordering, then hashed.
func (d *Deriver) FromLandmarks(landmarks []Landmark) (string, error) {
	if len(landmarks) == 0 {
		return "", ErrEmptyInput
	}

	parts := make([]string, 0, len(landmarks))
	for _, lm := range landmarks {
		parts = append(parts, fmt.Sprintf("%s:%.3f,%.3f", lm.Type, lm.X, lm.Y))
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:d.hexLen], nil
}

// FromImage derives a fallback fingerprint from raw capture bytes. Every
// capture produces a different hash, so this cannot detect duplicates; it
// only keeps the attempt-tracking path working when landmark detection fails.
func (d *Deriver) FromImage(image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyInput
	}
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])[:d.hexLen], nil
}

// FromMockEmail derives a stable per-user fingerprint for mock liveness
// sessions, so the duplicate-detection path stays exercisable without the
// real provider.
func (d *Deriver) FromMockEmail(email string) string {
	sum := md5.Sum([]byte("mock_face_" + strings.ToLower(strings.TrimSpace(email))))
	out := hex.EncodeToString(sum[:])
	if d.hexLen < len(out) {
		return out[:d.hexLen]
	}
	return out
}

// HexLen reports the configured prefix length.
func (d *Deriver) HexLen() int {
	return d.hexLen
}
