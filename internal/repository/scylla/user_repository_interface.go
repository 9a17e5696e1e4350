package scylla

import (
	"context"
	"time"

	"kyc-service/internal/models"
)

// UserRepository defines the user operations the verification flow needs.
// The users table is owned by the account service; this service reads
// account state and flips is_active / kyc_completed.
type UserRepository interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// SetKYCCompleted marks a user verified as of completedAt.
	SetKYCCompleted(ctx context.Context, userID string, completedAt time.Time) error

	// SuspendUser deactivates an account and revokes its verification.
	// Applied to both sides of a duplicate-face collision.
	SuspendUser(ctx context.Context, userID string) error

	// ResetKYC reactivates an account and clears its verification so the
	// user can verify again. Moderation-only.
	ResetKYC(ctx context.Context, userID string) error

	HealthCheck(ctx context.Context) error
}
