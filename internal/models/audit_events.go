package models

import "time"

// KYC audit event types recorded to the analytics store.
const (
	AuditEventAttempt   = "attempt"
	AuditEventRateLimit = "rate_limited"
	AuditEventBan       = "banned"
	AuditEventVerified  = "verified"
	AuditEventDuplicate = "duplicate"
	AuditEventReset     = "reset"
)

// KYCAuditEvent is a best-effort analytics record of a verification decision.
type KYCAuditEvent struct {
	EventTime   time.Time `db:"event_time"`
	EventType   string    `db:"event_type"`
	UserID      string    `db:"user_id"`
	SessionID   string    `db:"session_id"`
	Fingerprint string    `db:"fingerprint"`
	Detail      string    `db:"detail"`
}
