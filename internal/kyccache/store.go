package kyccache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"kyc-service/internal/util"
)

// FingerprintStore is the durable fingerprint -> owning user mapping. It is
// the source of truth for "has this face already completed KYC under a
// different account". Every mutation is flushed to the backing file before
// the call returns, so a crash cannot lose a registered fingerprint that was
// already reported as stored.
type FingerprintStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// NewFingerprintStore opens the store at path, seeding it from the existing
// file if one is present. A corrupt file is treated as empty rather than
// blocking startup.
func NewFingerprintStore(path string) (*FingerprintStore, error) {
	s := &FingerprintStore{
		path:    path,
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read fingerprint store: %w", err)
		}
		return s, nil
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		util.Warn("Fingerprint store file is corrupt, starting empty",
			zap.String("path", path),
			zap.Error(err))
		s.entries = make(map[string]string)
	}

	util.Info("Fingerprint store loaded",
		zap.String("path", path),
		zap.Int("entries", len(s.entries)))

	return s, nil
}

// Lookup returns the owning user of a fingerprint.
func (s *FingerprintStore) Lookup(fp string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.entries[fp]
	return owner, ok
}

// FingerprintOf returns the fingerprint registered for a user, if any.
func (s *FingerprintStore) FingerprintOf(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for fp, owner := range s.entries {
		if owner == userID {
			return fp, true
		}
	}
	return "", false
}

// Store registers a fingerprint for a user and flushes to disk. A flush
// failure is surfaced and the in-memory entry is rolled back, preserving the
// at-most-one-owner invariant across restarts.
func (s *FingerprintStore) Store(fp, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.entries[fp]
	s.entries[fp] = userID
	if err := s.flushLocked(); err != nil {
		if existed {
			s.entries[fp] = prev
		} else {
			delete(s.entries, fp)
		}
		return fmt.Errorf("failed to persist fingerprint: %w", err)
	}

	util.Debug("Fingerprint stored",
		zap.String("fingerprint", fp),
		zap.String("user_id", userID))

	return nil
}

// Delete removes a fingerprint mapping and flushes to disk.
func (s *FingerprintStore) Delete(fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.entries[fp]
	if !existed {
		return nil
	}
	delete(s.entries, fp)
	if err := s.flushLocked(); err != nil {
		s.entries[fp] = prev
		return fmt.Errorf("failed to persist fingerprint deletion: %w", err)
	}
	return nil
}

// DeleteByUser removes any fingerprint owned by userID. Used by moderation
// resets.
func (s *FingerprintStore) DeleteByUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for fp, owner := range s.entries {
		if owner == userID {
			removed = append(removed, fp)
			delete(s.entries, fp)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	if err := s.flushLocked(); err != nil {
		for _, fp := range removed {
			s.entries[fp] = userID
		}
		return fmt.Errorf("failed to persist fingerprint deletion: %w", err)
	}
	return nil
}

// Clear drops every mapping and flushes the empty store.
func (s *FingerprintStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]string)
	if err := s.flushLocked(); err != nil {
		return fmt.Errorf("failed to persist fingerprint clear: %w", err)
	}
	return nil
}

// Len returns the number of registered fingerprints.
func (s *FingerprintStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns a copy of the full mapping for admin inspection.
func (s *FingerprintStore) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.entries))
	for fp, owner := range s.entries {
		out[fp] = owner
	}
	return out
}

// flushLocked rewrites the backing file in full and fsyncs it. The write
// goes through a temp file and rename so a crash mid-write never leaves a
// truncated store behind. Caller must hold s.mu.
func (s *FingerprintStore) flushLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".fingerprints-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
