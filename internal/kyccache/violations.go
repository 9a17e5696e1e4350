package kyccache

import (
	"fmt"
	"sync"
	"time"
)

// DuplicateViolation is an audit record of a cross-ban: two accounts that
// presented the same face fingerprint.
type DuplicateViolation struct {
	ID         string    `json:"id"`
	User1ID    string    `json:"user1_id"`
	User2ID    string    `json:"user2_id"`
	User1Email string    `json:"user1_email"`
	User2Email string    `json:"user2_email"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// ViolationKey derives the stable identifier for a user pair, independent of
// argument order, so repeat collisions between the same two accounts update
// one record instead of accumulating.
func ViolationKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%s_%s", userA, userB)
}

// ViolationLog is the in-memory moderation record of cross-ban events.
// Append-only apart from retention pruning and explicit moderation clears.
type ViolationLog struct {
	mu      sync.Mutex
	entries map[string]DuplicateViolation
	now     func() time.Time
}

func NewViolationLog() *ViolationLog {
	return &ViolationLog{
		entries: make(map[string]DuplicateViolation),
		now:     time.Now,
	}
}

// Append records a violation, keyed by the user pair.
func (l *ViolationLog) Append(v DuplicateViolation) DuplicateViolation {
	if v.ID == "" {
		v.ID = ViolationKey(v.User1ID, v.User2ID)
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = l.now()
	}

	l.mu.Lock()
	l.entries[v.ID] = v
	l.mu.Unlock()

	return v
}

// List returns a snapshot of all recorded violations.
func (l *ViolationLog) List() []DuplicateViolation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]DuplicateViolation, 0, len(l.entries))
	for _, v := range l.entries {
		out = append(out, v)
	}
	return out
}

// PruneOlderThan drops violations recorded before the cutoff.
func (l *ViolationLog) PruneOlderThan(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	pruned := 0
	for id, v := range l.entries {
		if v.Timestamp.Before(cutoff) {
			delete(l.entries, id)
			pruned++
		}
	}
	return pruned
}

// Clear removes every violation record.
func (l *ViolationLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]DuplicateViolation)
}

// Len returns the number of recorded violations.
func (l *ViolationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
