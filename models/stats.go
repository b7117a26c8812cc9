package models

import "github.com/google/uuid"

// ReferralStats is the referral summary shown to a referrer
type ReferralStats struct {
	UserID          uuid.UUID          `json:"user_id"`
	ReferralCode    string             `json:"referral_code"`
	ReferralCount   int64              `json:"referral_count"`
	ReferralBalance int64              `json:"referral_balance"`
	CompletedCount  int64              `json:"completed_count"`
	PendingCount    int64              `json:"pending_count"`
	Referrals       []*ReferralWithUser `json:"referrals"`
}

// BalanceSnapshot is a user's server-side balance
type BalanceSnapshot struct {
	Balance         int64
	ReferralBalance int64
}

// SyncResult is the outcome of merging a client balance with the server
type SyncResult struct {
	Balance              int64
	ReferralBalance      int64
	ReferralSyncedAmount int64
	FoldedReferral       int64
}

// QualificationResult reports whether a referred user has qualified and,
// if not, how far away they are.
type QualificationResult struct {
	UserID             uuid.UUID
	Qualified          bool
	UserBalance        int64
	CompletedReferrals int64
	NewlyCompleted     int64
	EarnedAmount       int64
	EarningsNeeded     int64
	BalanceNeeded      int64
	ReferralsNeeded    int64
}

// UserProfile is a user with referral totals computed from processed ledger rows
type UserProfile struct {
	User            *User
	ReferralCount   int64
	ReferralBalance int64
}
