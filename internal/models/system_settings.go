package models

import "time"

// SystemSetting is a key/value row from the shared system_settings table.
// This service only reads the kyc_required flag.
type SystemSetting struct {
	Key       string     `db:"key" json:"key"`
	Value     string     `db:"value" json:"value"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// SettingKYCRequired toggles whether KYC verification gates airdrop rewards.
const SettingKYCRequired = "kyc_required"
