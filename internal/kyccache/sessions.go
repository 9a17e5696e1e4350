package kyccache

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("verification session not found")
	ErrNotSessionOwner = errors.New("session belongs to another user")
)

// SessionStatus is the local lifecycle of a verification session.
type SessionStatus string

const (
	SessionCreated   SessionStatus = "created"
	SessionSucceeded SessionStatus = "succeeded"
	SessionFailed    SessionStatus = "failed"
	SessionExpired   SessionStatus = "expired"
)

// SessionResult captures the outcome applied to a resolved session.
type SessionResult struct {
	Confidence float64 `json:"confidence"`
	Live       bool    `json:"live"`
	Message    string  `json:"message"`
}

// Session correlates an opaque local session ID with the provider-side
// liveness session and its owning user.
type Session struct {
	ID                string         `json:"session_id"`
	UserID            string         `json:"user_id"`
	ProviderSessionID string         `json:"provider_session_id"`
	CreatedAt         time.Time      `json:"created_at"`
	Status            SessionStatus  `json:"status"`
	Mock              bool           `json:"mock,omitempty"`
	Result            *SessionResult `json:"result,omitempty"`
}

// SessionRegistry holds pending and recently-resolved verification sessions.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create allocates a fresh session for a user.
func (r *SessionRegistry) Create(userID, providerSessionID string, mock bool) Session {
	s := &Session{
		ID:                uuid.NewString(),
		UserID:            userID,
		ProviderSessionID: providerSessionID,
		CreatedAt:         r.now(),
		Status:            SessionCreated,
		Mock:              mock,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return *s
}

// Get returns a snapshot of a session.
func (r *SessionRegistry) Get(sessionID string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *s, nil
}

// Resolve applies a terminal result to a session after verifying ownership.
func (r *SessionRegistry) Resolve(sessionID, userID string, status SessionStatus, result *SessionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if s.UserID != userID {
		return ErrNotSessionOwner
	}
	s.Status = status
	if result != nil {
		copied := *result
		s.Result = &copied
	}
	return nil
}

// Delete removes a session after verifying ownership.
func (r *SessionRegistry) Delete(sessionID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if s.UserID != userID {
		return ErrNotSessionOwner
	}
	delete(r.sessions, sessionID)
	return nil
}

// ExpireBefore reclaims every session created before the cutoff, returning
// how many were touched. A pending session transitions to expired and stays
// readable so its owner can observe the timeout; a session already in a
// terminal state is removed. An abandoned pending session has no other
// cancellation path.
func (r *SessionRegistry) ExpireBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	reclaimed := 0
	for id, s := range r.sessions {
		if !s.CreatedAt.Before(cutoff) {
			continue
		}
		if s.Status == SessionCreated {
			s.Status = SessionExpired
		} else {
			delete(r.sessions, id)
		}
		reclaimed++
	}
	return reclaimed
}

// CountForUser returns how many sessions a user currently holds.
func (r *SessionRegistry) CountForUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.sessions {
		if s.UserID == userID {
			count++
		}
	}
	return count
}

// Clear removes every session.
func (r *SessionRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*Session)
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
