package service

import (
	"context"
	"testing"

	"earnhub/config"
)

// testMocks holds a unit of work wired to fresh repository mocks
type testMocks struct {
	ctx            context.Context
	factory        *MockUnitOfWorkFactory
	uow            *MockUnitOfWork
	userRepo       *MockUserRepository
	identityRepo   *MockIdentityRepository
	referralRepo   *MockReferralRepository
	historyRepo    *MockBalanceHistoryRepository
	eventPublisher *MockEventPublisher
}

// newTestMocks installs the test config and returns mocks whose factory hands
// out a unit of work that expects Begin and a deferred Rollback.
func newTestMocks(t *testing.T) *testMocks {
	t.Helper()
	setupTestConfig(t)

	m := &testMocks{
		ctx:            context.Background(),
		factory:        new(MockUnitOfWorkFactory),
		uow:            new(MockUnitOfWork),
		userRepo:       new(MockUserRepository),
		identityRepo:   new(MockIdentityRepository),
		referralRepo:   new(MockReferralRepository),
		historyRepo:    new(MockBalanceHistoryRepository),
		eventPublisher: new(MockEventPublisher),
	}
	m.uow.SetRepositories(m.userRepo, m.identityRepo, m.referralRepo, m.historyRepo, m.eventPublisher)

	m.factory.On("Create").Return(m.uow)
	m.uow.On("Begin", m.ctx).Return(nil)
	m.uow.On("Rollback").Return(nil)

	return m
}

func (m *testMocks) expectCommit() {
	m.uow.On("Commit").Return(nil)
}

func (m *testMocks) assertExpectations(t *testing.T) {
	m.factory.AssertExpectations(t)
	m.uow.AssertExpectations(t)
	m.userRepo.AssertExpectations(t)
	m.identityRepo.AssertExpectations(t)
	m.referralRepo.AssertExpectations(t)
	m.historyRepo.AssertExpectations(t)
	m.eventPublisher.AssertExpectations(t)
}

// setupTestConfig installs the default test configuration for the current test
func setupTestConfig(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	t.Cleanup(config.ResetConfig)
}
