package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

// MockWalletEngine mocks service.WalletEngine
type MockWalletEngine struct {
	mock.Mock
}

func (m *MockWalletEngine) CreateAccount(ctx context.Context, req service.CreateAccountRequest) (*service.AccountResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AccountResult), args.Error(1)
}

func (m *MockWalletEngine) GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockWalletEngine) GetBalance(ctx context.Context, accountID uuid.UUID) (*service.BalanceView, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BalanceView), args.Error(1)
}

func (m *MockWalletEngine) Credit(ctx context.Context, req service.MutationRequest) (*service.MutationResult, error) {
	args := m.Called(ctx, req)
	return mutationResult(args)
}

func (m *MockWalletEngine) Debit(ctx context.Context, req service.MutationRequest) (*service.MutationResult, error) {
	args := m.Called(ctx, req)
	return mutationResult(args)
}

func (m *MockWalletEngine) Hold(ctx context.Context, req service.MutationRequest) (*service.MutationResult, error) {
	args := m.Called(ctx, req)
	return mutationResult(args)
}

func (m *MockWalletEngine) Release(ctx context.Context, req service.MutationRequest) (*service.MutationResult, error) {
	args := m.Called(ctx, req)
	return mutationResult(args)
}

func mutationResult(args mock.Arguments) (*service.MutationResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MutationResult), args.Error(1)
}

func (m *MockWalletEngine) Freeze(ctx context.Context, req service.StatusChangeRequest) (*account.Account, error) {
	args := m.Called(ctx, req)
	return statusResult(args)
}

func (m *MockWalletEngine) Suspend(ctx context.Context, req service.StatusChangeRequest) (*account.Account, error) {
	args := m.Called(ctx, req)
	return statusResult(args)
}

func (m *MockWalletEngine) Reactivate(ctx context.Context, req service.StatusChangeRequest) (*account.Account, error) {
	args := m.Called(ctx, req)
	return statusResult(args)
}

func statusResult(args mock.Arguments) (*account.Account, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockWalletEngine) IssueForPlan(ctx context.Context, req service.IssuanceRequest) (*service.IssuanceResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IssuanceResult), args.Error(1)
}

func (m *MockWalletEngine) IssueForPlanAtMarket(ctx context.Context, req service.MarketIssuanceRequest) (*service.IssuanceResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IssuanceResult), args.Error(1)
}

func (m *MockWalletEngine) Metrics() *service.Metrics {
	return nil
}

// MockArchive mocks ledger.Archive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Store(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockArchive) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockArchive) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

var (
	_ service.WalletEngine = (*MockWalletEngine)(nil)
	_ ledger.Archive       = (*MockArchive)(nil)
)
