package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/domain/uow"
)

// WalletEngine is the single entry point for balance-affecting wallet operations.
type WalletEngine interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*AccountResult, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (*BalanceView, error)

	Credit(ctx context.Context, req MutationRequest) (*MutationResult, error)
	Debit(ctx context.Context, req MutationRequest) (*MutationResult, error)
	Hold(ctx context.Context, req MutationRequest) (*MutationResult, error)
	Release(ctx context.Context, req MutationRequest) (*MutationResult, error)

	Freeze(ctx context.Context, req StatusChangeRequest) (*account.Account, error)
	Suspend(ctx context.Context, req StatusChangeRequest) (*account.Account, error)
	Reactivate(ctx context.Context, req StatusChangeRequest) (*account.Account, error)

	IssueForPlan(ctx context.Context, req IssuanceRequest) (*IssuanceResult, error)
	IssueForPlanAtMarket(ctx context.Context, req MarketIssuanceRequest) (*IssuanceResult, error)

	Metrics() *Metrics
}

// CommandProcessor executes wallet commands received from batch jobs.
type CommandProcessor interface {
	ProcessCommand(ctx context.Context, cmd *shared.WalletCommand) error
}

// RequestValidator checks requests before a unit of work is opened
type RequestValidator interface {
	ValidateMutation(entryType shared.EntryType, req *MutationRequest) error
	ValidateStatusChange(req *StatusChangeRequest) error
	// IdempotencyKey returns the caller's key, or a generated one when empty
	IdempotencyKey(key string) string
}

// AccountManager loads and persists account state inside a unit of work
type AccountManager interface {
	// LockActive locks the account and its balance and rejects inactive accounts
	LockActive(ctx context.Context, repos uow.Repositories, accountID uuid.UUID) (*account.Account, *account.Balance, error)
	// SaveMutation writes the mutated balance and bumps the activity counters
	SaveMutation(ctx context.Context, repos uow.Repositories, acc *account.Account, balance *account.Balance, expectedVersion int64, now time.Time) error
}

// EntryRecorder appends ledger entries and enqueues their outbox messages
type EntryRecorder interface {
	Record(ctx context.Context, repos uow.Repositories, entry *ledger.Entry) error
	RecordStatusChange(ctx context.Context, repos uow.Repositories, acc *account.Account, previous shared.AccountStatus) error
}
