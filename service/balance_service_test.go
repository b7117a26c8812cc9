package service

import (
	"errors"
	"math"
	"testing"

	"earnhub/events"
	"earnhub/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMergeBalances(t *testing.T) {
	tests := []struct {
		name      string
		client    int64
		server    int64
		referral  int64
		watermark int64
		expected  int64
	}{
		{"client ahead with unsynced referral income", 70000, 50000, 20000, 10000, 80000},
		{"server ahead", 40000, 55000, 0, 0, 55000},
		{"watermark above referral balance", 50000, 50000, 10000, 30000, 50000},
		{"nothing synced yet", 50000, 50000, 10000, 0, 60000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := MergeBalances(tt.client, tt.server, tt.referral, tt.watermark)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, total)
		})
	}
}

func TestMergeBalances_RejectsTotalsAboveMax(t *testing.T) {
	tests := []struct {
		name      string
		client    int64
		server    int64
		referral  int64
		watermark int64
	}{
		{"client at int64 max", math.MaxInt64, 50000, 10000, 0},
		{"server at max with unsynced referral income", 0, MaxBalance, 1, 0},
		{"referral income at int64 max", MaxBalance, 0, math.MaxInt64, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MergeBalances(tt.client, tt.server, tt.referral, tt.watermark)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	total, err := MergeBalances(MaxBalance-10000, 0, 10000, 0)
	require.NoError(t, err)
	assert.Equal(t, MaxBalance, total)
}

func TestBalanceService_GetBalance(t *testing.T) {
	m := newTestMocks(t)
	svc := NewBalanceService(m.factory)

	userID := uuid.New()
	m.userRepo.On("GetByID", m.ctx, userID).Return(&models.User{ID: userID, Balance: 52000, ReferralBalance: 10000}, nil)

	snapshot, err := svc.GetBalance(m.ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, &models.BalanceSnapshot{Balance: 52000, ReferralBalance: 10000}, snapshot)
	m.assertExpectations(t)
}

func TestBalanceService_GetBalance_NotFound(t *testing.T) {
	m := newTestMocks(t)
	svc := NewBalanceService(m.factory)

	userID := uuid.New()
	m.userRepo.On("GetByID", m.ctx, userID).Return(nil, nil)

	_, err := svc.GetBalance(m.ctx, userID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBalanceService_Sync_FoldsReferralIncome(t *testing.T) {
	m := newTestMocks(t)
	svc := NewBalanceService(m.factory)

	userID := uuid.New()
	m.userRepo.On("GetByIDForUpdate", m.ctx, userID).Return(&models.User{
		ID:                   userID,
		Balance:              50000,
		ReferralBalance:      20000,
		ReferralSyncedAmount: 0,
	}, nil)
	m.userRepo.On("SetBalanceAndWatermark", m.ctx, userID, int64(80000), int64(20000)).Return(nil)
	m.historyRepo.On("Record", m.ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.BalanceBefore == 50000 &&
			h.BalanceAfter == 80000 &&
			h.ChangeAmount == 30000 &&
			h.TransactionType == models.TransactionTypeReferralFold
	})).Return(nil)
	m.eventPublisher.On("Publish", m.ctx, events.BalanceChangeEvent{
		UserID:          userID,
		OldBalance:      50000,
		NewBalance:      80000,
		ChangeAmount:    30000,
		TransactionType: models.TransactionTypeReferralFold,
	}).Return(nil)
	m.expectCommit()

	result, err := svc.Sync(m.ctx, userID, 70000, 10000)

	require.NoError(t, err)
	assert.Equal(t, &models.SyncResult{
		Balance:              80000,
		ReferralBalance:      20000,
		ReferralSyncedAmount: 20000,
		FoldedReferral:       10000,
	}, result)
	m.assertExpectations(t)
}

func TestBalanceService_Sync_ServerWatermarkPreventsDoubleFold(t *testing.T) {
	m := newTestMocks(t)
	svc := NewBalanceService(m.factory)

	// A previous sync already folded the 20000 and persisted the watermark.
	// The client replays with its stale watermark of 10000.
	userID := uuid.New()
	m.userRepo.On("GetByIDForUpdate", m.ctx, userID).Return(&models.User{
		ID:                   userID,
		Balance:              80000,
		ReferralBalance:      20000,
		ReferralSyncedAmount: 20000,
	}, nil)
	m.userRepo.On("SetBalanceAndWatermark", m.ctx, userID, int64(80000), int64(20000)).Return(nil)
	m.expectCommit()

	result, err := svc.Sync(m.ctx, userID, 70000, 10000)

	require.NoError(t, err)
	assert.Equal(t, int64(80000), result.Balance)
	assert.Zero(t, result.FoldedReferral)
	m.assertExpectations(t)
	m.historyRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestBalanceService_Sync_ClientAheadWithoutReferral(t *testing.T) {
	m := newTestMocks(t)
	svc := NewBalanceService(m.factory)

	userID := uuid.New()
	m.userRepo.On("GetByIDForUpdate", m.ctx, userID).Return(&models.User{ID: userID, Balance: 50000}, nil)
	m.userRepo.On("SetBalanceAndWatermark", m.ctx, userID, int64(58000), int64(0)).Return(nil)
	m.historyRepo.On("Record", m.ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeSyncMerge && h.ChangeAmount == 8000
	})).Return(nil)
	m.eventPublisher.On("Publish", m.ctx, mock.AnythingOfType("events.BalanceChangeEvent")).Return(nil)
	m.expectCommit()

	result, err := svc.Sync(m.ctx, userID, 58000, 0)

	require.NoError(t, err)
	assert.Equal(t, int64(58000), result.Balance)
	m.assertExpectations(t)
}

func TestBalanceService_Sync_Validation(t *testing.T) {
	setupTestConfig(t)
	factory := new(MockUnitOfWorkFactory)
	svc := NewBalanceService(factory)

	_, err := svc.Sync(t.Context(), uuid.New(), -1, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Sync(t.Context(), uuid.New(), 1, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Sync(t.Context(), uuid.New(), math.MaxInt64, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	factory.AssertNotCalled(t, "Create")
}

func TestBalanceService_Sync_MergedTotalAboveMaxIsNotStored(t *testing.T) {
	m := newTestMocks(t)
	svc := NewBalanceService(m.factory)

	userID := uuid.New()
	m.userRepo.On("GetByIDForUpdate", m.ctx, userID).Return(&models.User{
		ID:              userID,
		Balance:         MaxBalance - 5000,
		ReferralBalance: 10000,
	}, nil)

	result, err := svc.Sync(m.ctx, userID, 50000, 0)

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, result)
	m.userRepo.AssertNotCalled(t, "SetBalanceAndWatermark", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestBalanceService_Sync_NotFound(t *testing.T) {
	m := newTestMocks(t)
	svc := NewBalanceService(m.factory)

	userID := uuid.New()
	m.userRepo.On("GetByIDForUpdate", m.ctx, userID).Return(nil, nil)

	_, err := svc.Sync(m.ctx, userID, 1, 0)
	assert.ErrorIs(t, err, ErrUserNotFound)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestBalanceService_SetBalance(t *testing.T) {
	m := newTestMocks(t)
	svc := NewBalanceService(m.factory)

	userID := uuid.New()
	m.userRepo.On("GetByIDForUpdate", m.ctx, userID).Return(&models.User{ID: userID, Balance: 55000}, nil)
	m.userRepo.On("UpdateBalance", m.ctx, userID, int64(60000)).Return(nil)
	m.historyRepo.On("Record", m.ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeBalanceSet &&
			h.BalanceBefore == 55000 &&
			h.BalanceAfter == 60000
	})).Return(nil)
	m.eventPublisher.On("Publish", m.ctx, mock.MatchedBy(func(e events.Event) bool {
		change, ok := e.(events.BalanceChangeEvent)
		return ok && change.NewBalance == 60000
	})).Return(nil)
	m.expectCommit()

	balance, err := svc.SetBalance(m.ctx, userID, 60000)

	require.NoError(t, err)
	assert.Equal(t, int64(60000), balance)
	m.assertExpectations(t)
}

func TestBalanceService_SetBalance_Errors(t *testing.T) {
	t.Run("negative balance", func(t *testing.T) {
		setupTestConfig(t)
		_, err := NewBalanceService(new(MockUnitOfWorkFactory)).SetBalance(t.Context(), uuid.New(), -5)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("balance above max", func(t *testing.T) {
		setupTestConfig(t)
		factory := new(MockUnitOfWorkFactory)
		_, err := NewBalanceService(factory).SetBalance(t.Context(), uuid.New(), MaxBalance+1)
		assert.ErrorIs(t, err, ErrInvalidInput)
		factory.AssertNotCalled(t, "Create")
	})

	t.Run("history failure rolls back", func(t *testing.T) {
		m := newTestMocks(t)
		svc := NewBalanceService(m.factory)

		userID := uuid.New()
		m.userRepo.On("GetByIDForUpdate", m.ctx, userID).Return(&models.User{ID: userID, Balance: 1}, nil)
		m.userRepo.On("UpdateBalance", m.ctx, userID, int64(2)).Return(nil)
		m.historyRepo.On("Record", m.ctx, mock.Anything).Return(errors.New("history error"))

		_, err := svc.SetBalance(m.ctx, userID, 2)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to record balance history")
		m.uow.AssertNotCalled(t, "Commit")
	})
}
