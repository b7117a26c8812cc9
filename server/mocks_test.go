package server

import (
	"context"

	"earnhub/models"
	"earnhub/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockSignupService struct{ mock.Mock }

func (m *mockSignupService) Signup(ctx context.Context, input service.SignupInput) (*models.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type mockBalanceService struct{ mock.Mock }

func (m *mockBalanceService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.BalanceSnapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BalanceSnapshot), args.Error(1)
}

func (m *mockBalanceService) Sync(ctx context.Context, userID uuid.UUID, clientBalance, clientWatermark int64) (*models.SyncResult, error) {
	args := m.Called(ctx, userID, clientBalance, clientWatermark)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncResult), args.Error(1)
}

func (m *mockBalanceService) SetBalance(ctx context.Context, userID uuid.UUID, balance int64) (int64, error) {
	args := m.Called(ctx, userID, balance)
	return args.Get(0).(int64), args.Error(1)
}

type mockQualificationService struct{ mock.Mock }

func (m *mockQualificationService) Evaluate(ctx context.Context, userID uuid.UUID) (*models.QualificationResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QualificationResult), args.Error(1)
}

func (m *mockQualificationService) Check(ctx context.Context, userID uuid.UUID) (*models.QualificationResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QualificationResult), args.Error(1)
}

type mockReferralStatsService struct{ mock.Mock }

func (m *mockReferralStatsService) GetReferralStats(ctx context.Context, userID uuid.UUID) (*models.ReferralStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferralStats), args.Error(1)
}

type mockUserService struct{ mock.Mock }

func (m *mockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

func (m *mockUserService) ReconcileReferralCounters(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
