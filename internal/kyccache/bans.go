package kyccache

import (
	"sync"
	"time"
)

// DecisionState classifies the outcome of a rate-limit check.
type DecisionState int

const (
	// StateAllowed: the attempt may proceed.
	StateAllowed DecisionState = iota
	// StateRateLimited: this attempt exhausted the window and triggered the
	// ban; the ban applies to every later attempt inside the cooldown.
	StateRateLimited
	// StateBanned: the subject is inside an active cooldown.
	StateBanned
)

// Decision is the result of Limiter.Check.
type Decision struct {
	State      DecisionState
	Remaining  int
	RetryAfter time.Duration
}

// Limiter combines a sliding attempt window with a ban set under one policy.
// Two instances exist: one keyed by user ID, one keyed by face fingerprint,
// with different thresholds but identical semantics. Bans expire lazily on
// read and eagerly via LiftExpired from the sweeper; lifting a ban also
// clears the subject's attempt history.
type Limiter struct {
	mu          sync.Mutex
	attempts    *AttemptTracker
	banned      map[string]time.Time
	maxAttempts int
	cooldown    time.Duration
	now         func() time.Time
}

func NewLimiter(maxAttempts int, window, cooldown time.Duration) *Limiter {
	return &Limiter{
		attempts:    NewAttemptTracker(window),
		banned:      make(map[string]time.Time),
		maxAttempts: maxAttempts,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Check gates one attempt. Banned subjects are rejected without recording.
// Otherwise the attempt is recorded, and the attempt that reaches the
// threshold transitions the subject into the banned set; it is itself
// rejected as rate-limited, and every later attempt inside the cooldown is
// rejected as banned.
func (l *Limiter) Check(subject string) Decision {
	if remaining, banned := l.banRemaining(subject); banned {
		return Decision{State: StateBanned, RetryAfter: remaining}
	}

	l.attempts.Record(subject)
	count := l.attempts.CountRecent(subject)
	if count >= l.maxAttempts {
		l.Ban(subject)
		return Decision{State: StateRateLimited, RetryAfter: l.cooldown}
	}
	return Decision{State: StateAllowed, Remaining: l.maxAttempts - count}
}

// IsBanned reports whether the subject is inside an active cooldown,
// lazily lifting expired bans.
func (l *Limiter) IsBanned(subject string) bool {
	_, banned := l.banRemaining(subject)
	return banned
}

// BanRemaining returns the time left on an active ban.
func (l *Limiter) BanRemaining(subject string) (time.Duration, bool) {
	return l.banRemaining(subject)
}

// Ban marks the subject banned as of now.
func (l *Limiter) Ban(subject string) {
	l.mu.Lock()
	l.banned[subject] = l.now()
	l.mu.Unlock()
}

// Forgive clears both the ban and the attempt history for a subject.
// Successful verification forgives prior throttling.
func (l *Limiter) Forgive(subject string) {
	l.mu.Lock()
	delete(l.banned, subject)
	l.mu.Unlock()
	l.attempts.Clear(subject)
}

// Remaining reports attempts left in the current window without recording
// one. Banned subjects have zero.
func (l *Limiter) Remaining(subject string) int {
	if l.IsBanned(subject) {
		return 0
	}
	left := l.maxAttempts - l.attempts.CountRecent(subject)
	if left < 0 {
		return 0
	}
	return left
}

// LiftExpired eagerly lifts every ban past its cooldown and clears the
// corresponding attempt windows. Returns the number of bans lifted.
func (l *Limiter) LiftExpired() int {
	now := l.now()

	l.mu.Lock()
	var expired []string
	for subject, bannedAt := range l.banned {
		if now.Sub(bannedAt) >= l.cooldown {
			expired = append(expired, subject)
			delete(l.banned, subject)
		}
	}
	l.mu.Unlock()

	for _, subject := range expired {
		l.attempts.Clear(subject)
	}
	return len(expired)
}

// PruneAttempts drops stale attempt entries across all subjects.
func (l *Limiter) PruneAttempts() {
	l.attempts.PruneAll()
}

// ClearAll wipes bans and attempts for every subject.
func (l *Limiter) ClearAll() {
	l.mu.Lock()
	l.banned = make(map[string]time.Time)
	l.mu.Unlock()
	l.attempts.ClearAll()
}

// BannedCount returns the number of subjects currently marked banned,
// including bans awaiting lazy expiry.
func (l *Limiter) BannedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.banned)
}

// TrackedCount returns the number of subjects with recent attempts.
func (l *Limiter) TrackedCount() int {
	return l.attempts.Tracked()
}

func (l *Limiter) banRemaining(subject string) (time.Duration, bool) {
	l.mu.Lock()
	bannedAt, ok := l.banned[subject]
	if !ok {
		l.mu.Unlock()
		return 0, false
	}
	remaining := l.cooldown - l.now().Sub(bannedAt)
	if remaining > 0 {
		l.mu.Unlock()
		return remaining, true
	}
	delete(l.banned, subject)
	l.mu.Unlock()
	l.attempts.Clear(subject)
	return 0, false
}
