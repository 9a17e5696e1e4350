package kyccache

import (
	"sync"
	"time"
)

// AttemptTracker keeps sliding-window attempt timestamps per subject. A
// subject is either a user ID or a face fingerprint; the two namespaces use
// separate tracker instances.
type AttemptTracker struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string][]time.Time
	now     func() time.Time
}

func NewAttemptTracker(window time.Duration) *AttemptTracker {
	return &AttemptTracker{
		window:  window,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Record appends the current time to the subject's window.
func (t *AttemptTracker) Record(subject string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows[subject] = append(t.windows[subject], t.now())
}

// CountRecent returns the number of attempts inside the trailing window,
// pruning stale entries as a side effect. Unknown subjects count zero.
func (t *AttemptTracker) CountRecent(subject string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pruneLocked(subject)
}

// Clear forgets all attempts for a subject.
func (t *AttemptTracker) Clear(subject string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, subject)
}

// ClearAll forgets every subject.
func (t *AttemptTracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows = make(map[string][]time.Time)
}

// PruneAll drops stale entries for every subject and removes empty windows.
// Called by the sweeper; the same pruning also happens lazily on reads.
func (t *AttemptTracker) PruneAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for subject := range t.windows {
		t.pruneLocked(subject)
	}
}

// Tracked returns the number of subjects with at least one recent attempt.
func (t *AttemptTracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

func (t *AttemptTracker) pruneLocked(subject string) int {
	attempts, ok := t.windows[subject]
	if !ok {
		return 0
	}
	cutoff := t.now().Add(-t.window)
	kept := attempts[:0]
	for _, at := range attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(t.windows, subject)
		return 0
	}
	t.windows[subject] = kept
	return len(kept)
}
