package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeInitial      TransactionType = "initial"
	TransactionTypeSyncMerge    TransactionType = "sync_merge"
	TransactionTypeReferralFold TransactionType = "referral_fold"
	TransactionTypeBalanceSet   TransactionType = "balance_set"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	UserID              uuid.UUID       `db:"user_id"`
	BalanceBefore       int64           `db:"balance_before"`
	BalanceAfter        int64           `db:"balance_after"`
	ChangeAmount        int64           `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	CreatedAt           time.Time       `db:"created_at"`
}
