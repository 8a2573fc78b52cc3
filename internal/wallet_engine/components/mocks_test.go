package components

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/issuance"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/outbox"
	"github.com/token-wallet-ledger/internal/domain/shared"
)

type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) Create(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepo) CreateBalance(ctx context.Context, balance *account.Balance) error {
	args := m.Called(ctx, balance)
	return args.Error(0)
}

func (m *MockAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepo) GetByOwnerID(ctx context.Context, ownerID string) (*account.Account, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepo) GetBalance(ctx context.Context, accountID uuid.UUID) (*account.Balance, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Balance), args.Error(1)
}

func (m *MockAccountRepo) LockForUpdate(ctx context.Context, accountID uuid.UUID) (*account.Account, *account.Balance, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*account.Account), args.Get(1).(*account.Balance), args.Error(2)
}

func (m *MockAccountRepo) UpdateBalance(ctx context.Context, balance *account.Balance, expectedVersion int64) error {
	args := m.Called(ctx, balance, expectedVersion)
	return args.Error(0)
}

func (m *MockAccountRepo) UpdateActivity(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepo) UpdateStatus(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

type MockLedgerRepo struct {
	mock.Mock
}

func (m *MockLedgerRepo) Append(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepo) GetByIdempotencyKey(ctx context.Context, key string) (*ledger.Entry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

type MockIssuanceRepo struct {
	mock.Mock
}

func (m *MockIssuanceRepo) Create(ctx context.Context, record *issuance.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockIssuanceRepo) GetByPeriod(ctx context.Context, accountID uuid.UUID, planID string, effectiveFrom time.Time) (*issuance.Record, error) {
	args := m.Called(ctx, accountID, planID, effectiveFrom)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*issuance.Record), args.Error(1)
}

func (m *MockIssuanceRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*issuance.Record, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*issuance.Record), args.Error(1)
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// mockRepositories bundles the repository mocks as one unit of work
type mockRepositories struct {
	accounts  *MockAccountRepo
	ledger    *MockLedgerRepo
	issuances *MockIssuanceRepo
	outbox    *MockOutboxRepo
}

func newMockRepositories() *mockRepositories {
	return &mockRepositories{
		accounts:  &MockAccountRepo{},
		ledger:    &MockLedgerRepo{},
		issuances: &MockIssuanceRepo{},
		outbox:    &MockOutboxRepo{},
	}
}

func (r *mockRepositories) Accounts() account.Repository   { return r.accounts }
func (r *mockRepositories) Ledger() ledger.Repository      { return r.ledger }
func (r *mockRepositories) Issuances() issuance.Repository { return r.issuances }
func (r *mockRepositories) Outbox() outbox.Repository      { return r.outbox }
