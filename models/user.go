package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account with its balance and referral counters.
// ReferralCount and ReferralBalance are materialized from the referral ledger.
type User struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	Name                 string     `db:"name" json:"name"`
	Email                string     `db:"email" json:"email"`
	Balance              int64      `db:"balance" json:"balance"`
	ReferralCode         string     `db:"referral_code" json:"referral_code"`
	ReferredBy           *uuid.UUID `db:"referred_by" json:"referred_by,omitempty"`
	ReferralCount        int64      `db:"referral_count" json:"referral_count"`
	ReferralBalance      int64      `db:"referral_balance" json:"referral_balance"`
	ReferralSyncedAmount int64      `db:"referral_synced_amount" json:"-"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// AuthIdentity holds the login credentials of a user
type AuthIdentity struct {
	UserID       uuid.UUID `db:"user_id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
