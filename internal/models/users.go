package models

import "time"

// User mirrors the fields of the relational users table this service reads
// and writes. The table is owned by the account service; only is_active and
// kyc_completed are mutated here.
type User struct {
	UserBucket     int        `db:"user_bucket" json:"-"`
	UserID         string     `db:"user_id" json:"user_id"`
	Email          string     `db:"email" json:"email"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	KYCCompleted   bool       `db:"kyc_completed" json:"kyc_completed"`
	KYCCompletedAt *time.Time `db:"kyc_completed_at" json:"kyc_completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
