package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralStatus is the completion state of a referral ledger entry
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "PENDING"
	ReferralStatusCompleted ReferralStatus = "COMPLETED"
)

// Referral is one edge of the referral ledger. Rows move from PENDING to
// COMPLETED exactly once and are never deleted.
type Referral struct {
	ID          int64          `db:"id" json:"id"`
	ReferrerID  uuid.UUID      `db:"referrer_id" json:"referrer_id"`
	ReferredID  uuid.UUID      `db:"referred_id" json:"referred_id"`
	Status      ReferralStatus `db:"status" json:"status"`
	Amount      int64          `db:"amount" json:"amount"`
	Processed   bool           `db:"processed" json:"processed"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	CompletedAt *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

// ReferralWithUser is a ledger entry joined with the referred user's identity
type ReferralWithUser struct {
	Referral
	ReferredName  string `db:"referred_name" json:"referred_name"`
	ReferredEmail string `db:"referred_email" json:"referred_email"`
}

// ReferralCounts summarises the ledger rows of one referrer
type ReferralCounts struct {
	Total          int64
	Completed      int64
	Pending        int64
	CompletedTotal int64 // Sum of amounts of completed rows
	ProcessedTotal int64 // Sum of amounts of processed rows
}
