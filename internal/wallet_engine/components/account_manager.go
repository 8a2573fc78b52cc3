package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/domain/uow"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

// AccountManagerImpl implements the AccountManager interface
type AccountManagerImpl struct {
	logger *slog.Logger
}

// NewAccountManager creates a new AccountManagerImpl
func NewAccountManager(logger *slog.Logger) service.AccountManager {
	return &AccountManagerImpl{
		logger: logger,
	}
}

// LockActive locks the account and balance rows and rejects inactive accounts
func (m *AccountManagerImpl) LockActive(ctx context.Context, repos uow.Repositories, accountID uuid.UUID) (*account.Account, *account.Balance, error) {
	acc, balance, err := repos.Accounts().LockForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			m.logger.Warn("Account not found for lock", "account_id", accountID.String())
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to lock account %s: %w", accountID, err)
	}

	if err := acc.EnsureActive(); err != nil {
		return nil, nil, err
	}

	m.logger.Debug("Account locked",
		"account_id", accountID.String(),
		"available", balance.Available.String(),
		"pending", balance.Pending.String(),
		"version", balance.Version,
	)
	return acc, balance, nil
}

// SaveMutation persists the mutated balance and the account activity counters
func (m *AccountManagerImpl) SaveMutation(
	ctx context.Context,
	repos uow.Repositories,
	acc *account.Account,
	balance *account.Balance,
	expectedVersion int64,
	now time.Time,
) error {
	if err := repos.Accounts().UpdateBalance(ctx, balance, expectedVersion); err != nil {
		if errors.Is(err, shared.ErrConcurrentModification) {
			m.logger.Warn("Concurrent modification on balance update", "account_id", acc.ID.String())
		}
		return err
	}

	acc.RecordActivity(now)
	if err := repos.Accounts().UpdateActivity(ctx, acc); err != nil {
		return err
	}

	m.logger.Debug("Balance updated",
		"account_id", acc.ID.String(),
		"available", balance.Available.String(),
		"pending", balance.Pending.String(),
		"version", balance.Version,
	)
	return nil
}
