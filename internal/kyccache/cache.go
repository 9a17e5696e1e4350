package kyccache

import (
	"time"
)

// Options sizes the verification cache.
type Options struct {
	MaxAttemptsPerUser int
	MaxAttemptsPerFace int
	AttemptWindow      time.Duration
	BanDuration        time.Duration
	SessionTimeout     time.Duration
	ViolationRetention time.Duration
	FingerprintFile    string
}

// Cache owns every piece of mutable KYC verification state: the durable
// fingerprint registry, the per-user and per-face limiters, pending
// sessions, and the violation log. It is constructed once at startup,
// seeded from the persisted fingerprint file, and shared between request
// handlers and the sweeper; each structure serializes its own access.
type Cache struct {
	Fingerprints *FingerprintStore
	Users        *Limiter
	Faces        *Limiter
	Sessions     *SessionRegistry
	Violations   *ViolationLog

	opts Options
}

// New builds the cache and loads the fingerprint file.
func New(opts Options) (*Cache, error) {
	store, err := NewFingerprintStore(opts.FingerprintFile)
	if err != nil {
		return nil, err
	}

	return &Cache{
		Fingerprints: store,
		Users:        NewLimiter(opts.MaxAttemptsPerUser, opts.AttemptWindow, opts.BanDuration),
		Faces:        NewLimiter(opts.MaxAttemptsPerFace, opts.AttemptWindow, opts.BanDuration),
		Sessions:     NewSessionRegistry(),
		Violations:   NewViolationLog(),
		opts:         opts,
	}, nil
}

// SweepResult summarizes one reclamation pass.
type SweepResult struct {
	ExpiredSessions  int
	LiftedUserBans   int
	LiftedFaceBans   int
	PrunedViolations int
}

// Sweep runs one reclamation pass: expire idle sessions, lift bans past
// cooldown, prune stale attempt windows, and drop violations past retention.
func (c *Cache) Sweep(now time.Time) SweepResult {
	res := SweepResult{
		ExpiredSessions:  c.Sessions.ExpireBefore(now.Add(-c.opts.SessionTimeout)),
		LiftedUserBans:   c.Users.LiftExpired(),
		LiftedFaceBans:   c.Faces.LiftExpired(),
		PrunedViolations: c.Violations.PruneOlderThan(now.Add(-c.opts.ViolationRetention)),
	}
	c.Users.PruneAttempts()
	c.Faces.PruneAttempts()
	return res
}

// ClearAll empties every structure, including the persisted fingerprint
// store. Moderation-only.
func (c *Cache) ClearAll() error {
	c.Sessions.Clear()
	c.Users.ClearAll()
	c.Faces.ClearAll()
	c.Violations.Clear()
	return c.Fingerprints.Clear()
}

// Stats reports per-structure sizes for the admin cache-status endpoint.
type Stats struct {
	ActiveSessions      int `json:"active_sessions"`
	TrackedUsers        int `json:"tracked_users"`
	TrackedFaces        int `json:"tracked_faces"`
	BannedUsers         int `json:"banned_users"`
	BannedFaces         int `json:"banned_faces"`
	StoredFingerprints  int `json:"stored_fingerprints"`
	DuplicateViolations int `json:"duplicate_violations"`
}

func (c *Cache) Stats() Stats {
	return Stats{
		ActiveSessions:      c.Sessions.Len(),
		TrackedUsers:        c.Users.TrackedCount(),
		TrackedFaces:        c.Faces.TrackedCount(),
		BannedUsers:         c.Users.BannedCount(),
		BannedFaces:         c.Faces.BannedCount(),
		StoredFingerprints:  c.Fingerprints.Len(),
		DuplicateViolations: c.Violations.Len(),
	}
}
