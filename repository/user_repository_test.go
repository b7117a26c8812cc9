package repository

import (
	"context"
	"testing"
	"time"

	"earnhub/models"
	"earnhub/repository/testutil"
	"earnhub/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("alice")
	require.NoError(t, repo.Create(ctx, user))
	assert.False(t, user.CreatedAt.IsZero())
	assert.Zero(t, user.ReferralCount)
	assert.Zero(t, user.ReferralBalance)

	t.Run("by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.Email, got.Email)
		assert.Equal(t, int64(50000), got.Balance)
		assert.Nil(t, got.ReferredBy)
	})

	t.Run("by email", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("by referral code", func(t *testing.T) {
		got, err := repo.GetByReferralCode(ctx, user.ReferralCode)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)

		exists, err := repo.ReferralCodeExists(ctx, user.ReferralCode)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ReferralCodeExists(ctx, "NOPE2345")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("unknown user returns nil", func(t *testing.T) {
		got, err := repo.GetByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testutil.CreateTestUser("bob")))

	err := repo.Create(ctx, testutil.CreateTestUser("bob"))
	assert.ErrorIs(t, err, service.ErrEmailTaken)
}

func TestUserRepository_BalanceUpdates(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("carol")
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.UpdateBalance(ctx, user.ID, 75000))
	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(75000), got.Balance)

	require.NoError(t, repo.SetBalanceAndWatermark(ctx, user.ID, 90000, 20000))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), got.Balance)
	assert.Equal(t, int64(20000), got.ReferralSyncedAmount)

	err = repo.UpdateBalance(ctx, uuid.New(), 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestUserRepository_BalanceBounds(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("carla")
	require.NoError(t, repo.Create(ctx, user))

	assert.Error(t, repo.UpdateBalance(ctx, user.ID, -1))
	assert.Error(t, repo.UpdateBalance(ctx, user.ID, service.MaxBalance+1))
	assert.Error(t, repo.SetBalanceAndWatermark(ctx, user.ID, 100, -1))
	require.NoError(t, repo.UpdateBalance(ctx, user.ID, service.MaxBalance))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, service.MaxBalance, got.Balance)
}

func TestUserRepository_ReferralCounters(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("dave")
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.IncrementReferralCount(ctx, user.ID))
	require.NoError(t, repo.IncrementReferralCount(ctx, user.ID))
	require.NoError(t, repo.AddReferralBalance(ctx, user.ID, 10000))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ReferralCount)
	assert.Equal(t, int64(10000), got.ReferralBalance)

	assert.Error(t, repo.AddReferralBalance(ctx, user.ID, 0))
}

func TestUserRepository_ReconcileReferralCounters(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	userRepo := NewUserRepository(testDB.DB)
	referralRepo := NewReferralRepository(testDB.DB)
	ctx := context.Background()

	referrer := testutil.CreateTestUser("erin")
	first := testutil.CreateReferredTestUser("frank", referrer)
	second := testutil.CreateReferredTestUser("grace", referrer)
	for _, u := range []*models.User{referrer, first, second} {
		require.NoError(t, userRepo.Create(ctx, u))
	}

	require.NoError(t, referralRepo.Create(ctx, testutil.CreateTestReferral(referrer, first)))
	require.NoError(t, referralRepo.Create(ctx, testutil.CreateTestReferral(referrer, second)))
	_, err := referralRepo.CompletePendingForReferred(ctx, first.ID)
	require.NoError(t, err)

	// Counters were never maintained, so they drifted from the ledger
	corrected, err := userRepo.ReconcileReferralCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), corrected)

	got, err := userRepo.GetByID(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ReferralCount)
	assert.Equal(t, int64(10000), got.ReferralBalance)

	corrected, err = userRepo.ReconcileReferralCounters(ctx)
	require.NoError(t, err)
	assert.Zero(t, corrected)
}

func TestUserRepository_ReconcileSkipsUsersLockedByACredit(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	userRepo := NewUserRepository(testDB.DB)
	referralRepo := NewReferralRepository(testDB.DB)
	ctx := context.Background()

	referrer := testutil.CreateTestUser("heidi")
	referred := testutil.CreateReferredTestUser("ivan", referrer)
	require.NoError(t, userRepo.Create(ctx, referrer))
	require.NoError(t, userRepo.Create(ctx, referred))
	// referral_count is left at zero so the referrer is a reconcile candidate
	require.NoError(t, referralRepo.Create(ctx, testutil.CreateTestReferral(referrer, referred)))

	// A qualification check completes the referral and credits the referrer,
	// holding the referrer's row lock until it commits
	tx, err := testDB.DB.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	completed, err := newReferralRepositoryWithTx(tx).CompletePendingForReferred(ctx, referred.ID)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.NoError(t, newUserRepositoryWithTx(tx).AddReferralBalance(ctx, referrer.ID, completed[0].Amount))

	reconcileCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	corrected, err := userRepo.ReconcileReferralCounters(reconcileCtx)
	require.NoError(t, err)
	assert.Zero(t, corrected)

	require.NoError(t, tx.Commit(ctx))

	corrected, err = userRepo.ReconcileReferralCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), corrected)

	got, err := userRepo.GetByID(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ReferralCount)
	assert.Equal(t, completed[0].Amount, got.ReferralBalance)
}
