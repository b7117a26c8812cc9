package testutil

import (
	"fmt"
	"strings"
	"time"

	"earnhub/models"

	"github.com/google/uuid"
)

// CreateTestUser creates a test user with default values. Email and referral
// code are derived from the name so they stay unique per test.
func CreateTestUser(name string) *models.User {
	id := uuid.New()
	now := time.Now()
	return &models.User{
		ID:           id,
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", strings.ToLower(name)),
		Balance:      50000,
		ReferralCode: strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8]),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CreateTestUserWithBalance creates a test user with a specific balance
func CreateTestUserWithBalance(name string, balance int64) *models.User {
	user := CreateTestUser(name)
	user.Balance = balance
	return user
}

// CreateReferredTestUser creates a test user referred by referrer
func CreateReferredTestUser(name string, referrer *models.User) *models.User {
	user := CreateTestUser(name)
	user.ReferredBy = &referrer.ID
	return user
}

// CreateTestReferral creates a pending ledger entry between two users
func CreateTestReferral(referrer, referred *models.User) *models.Referral {
	return &models.Referral{
		ReferrerID: referrer.ID,
		ReferredID: referred.ID,
		Status:     models.ReferralStatusPending,
		Amount:     10000,
	}
}

// CreateTestBalanceHistory creates a test balance history entry
func CreateTestBalanceHistory(userID uuid.UUID, transactionType models.TransactionType) *models.BalanceHistory {
	return &models.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   50000,
		BalanceAfter:    60000,
		ChangeAmount:    10000,
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
		CreatedAt: time.Now(),
	}
}
