// Package postgres provides PostgreSQL implementations of the domain repositories.
// Monetary columns are NUMERIC; they are written from decimal strings and read
// back through ::text so no value ever passes through a float.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/platform/persistence"
)

const accountsOwnerConstraint = "accounts_owner_id_key"

const accountColumns = `
		a.id, a.owner_id, a.status, a.total_transactions, a.last_activity,
		COALESCE(a.freeze_reason, ''), COALESCE(a.status_reason, ''), a.status_changed_at,
		COALESCE(a.status_changed_by, ''), a.created_by, a.created_at, a.updated_at`

const balanceColumns = `
		b.account_id, b.available::text, b.pending::text, b.version, b.updated_at`

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository bound to querier
func NewAccountRepository(logger *slog.Logger, querier persistence.Querier) *AccountRepository {
	return &AccountRepository{
		querier: querier,
		logger:  logger,
	}
}

// WithTx returns a copy of the repository that runs every statement on tx
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new account. A second account for the same owner violates
// accounts_owner_id_key and is reported as ErrOwnerAlreadyExists.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (id, owner_id, status, total_transactions, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.ID,
		acc.OwnerID,
		string(acc.Status),
		acc.Metadata.TotalTransactions,
		acc.CreatedBy,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, accountsOwnerConstraint) {
			return account.ErrOwnerAlreadyExists{OwnerID: acc.OwnerID}
		}
		r.logger.Error("Failed to create account", "owner_id", acc.OwnerID, "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// CreateBalance stores the initial balance row of an account
func (r *AccountRepository) CreateBalance(ctx context.Context, balance *account.Balance) error {
	query := `
		INSERT INTO balances (account_id, available, pending, version, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query,
		balance.AccountID,
		balance.Available.String(),
		balance.Pending.String(),
		balance.Version,
		balance.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create balance", "account_id", balance.AccountID.String(), "error", err)
		return fmt.Errorf("failed to create balance: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts a
		WHERE a.id = $1
	`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

// GetByOwnerID retrieves the account of an owner.
// Returns nil, nil when the owner has no account.
func (r *AccountRepository) GetByOwnerID(ctx context.Context, ownerID string) (*account.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts a
		WHERE a.owner_id = $1
	`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get account by owner ID", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to get account by owner ID: %w", err)
	}

	return acc, nil
}

// GetBalance retrieves the current balance of an account without locking it
func (r *AccountRepository) GetBalance(ctx context.Context, accountID uuid.UUID) (*account.Balance, error) {
	query := `SELECT` + balanceColumns + `
		FROM balances b
		WHERE b.account_id = $1
	`

	balance, err := scanBalance(r.querier.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: accountID}
		}
		r.logger.Error("Failed to get balance", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// LockForUpdate locks the account and balance rows for the rest of the
// transaction and returns their current state.
func (r *AccountRepository) LockForUpdate(ctx context.Context, accountID uuid.UUID) (*account.Account, *account.Balance, error) {
	query := `SELECT` + accountColumns + `,` + balanceColumns + `
		FROM accounts a
		JOIN balances b ON b.account_id = a.id
		WHERE a.id = $1
		FOR UPDATE
	`

	var (
		acc     account.Account
		balance account.Balance
		status  string
		avail   string
		pending string
	)
	err := r.querier.QueryRow(ctx, query, accountID).Scan(
		&acc.ID,
		&acc.OwnerID,
		&status,
		&acc.Metadata.TotalTransactions,
		&acc.Metadata.LastActivity,
		&acc.Metadata.FreezeReason,
		&acc.Metadata.StatusReason,
		&acc.Metadata.StatusChangedAt,
		&acc.Metadata.StatusChangedBy,
		&acc.CreatedBy,
		&acc.CreatedAt,
		&acc.UpdatedAt,
		&balance.AccountID,
		&avail,
		&pending,
		&balance.Version,
		&balance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, account.ErrAccountNotFound{AccountID: accountID}
		}
		r.logger.Error("Failed to lock account for update", "account_id", accountID.String(), "error", err)
		return nil, nil, fmt.Errorf("failed to lock account for update: %w", err)
	}
	acc.Status = shared.AccountStatus(status)

	if balance.Available, err = parseDecimal("available", avail); err != nil {
		return nil, nil, err
	}
	if balance.Pending, err = parseDecimal("pending", pending); err != nil {
		return nil, nil, err
	}

	return &acc, &balance, nil
}

// UpdateBalance writes the new balance when the stored version still equals
// expectedVersion. Returns ErrConcurrentModification otherwise.
func (r *AccountRepository) UpdateBalance(ctx context.Context, balance *account.Balance, expectedVersion int64) error {
	query := `
		UPDATE balances
		SET available = $1, pending = $2, version = $3, updated_at = $4
		WHERE account_id = $5 AND version = $6
	`

	result, err := r.querier.Exec(ctx, query,
		balance.Available.String(),
		balance.Pending.String(),
		balance.Version,
		balance.UpdatedAt,
		balance.AccountID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update balance", "account_id", balance.AccountID.String(), "error", err)
		return fmt.Errorf("failed to update balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrConcurrentModification{AccountID: balance.AccountID}
	}

	return nil
}

// UpdateActivity persists the transaction counter and last activity
func (r *AccountRepository) UpdateActivity(ctx context.Context, acc *account.Account) error {
	query := `
		UPDATE accounts
		SET total_transactions = $1, last_activity = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query,
		acc.Metadata.TotalTransactions,
		acc.Metadata.LastActivity,
		acc.UpdatedAt,
		acc.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update account activity", "id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to update account activity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{AccountID: acc.ID}
	}

	return nil
}

// UpdateStatus persists a lifecycle transition and its audit metadata
func (r *AccountRepository) UpdateStatus(ctx context.Context, acc *account.Account) error {
	query := `
		UPDATE accounts
		SET status = $1, freeze_reason = NULLIF($2, ''), status_reason = $3,
			status_changed_at = $4, status_changed_by = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := r.querier.Exec(ctx, query,
		string(acc.Status),
		acc.Metadata.FreezeReason,
		acc.Metadata.StatusReason,
		acc.Metadata.StatusChangedAt,
		acc.Metadata.StatusChangedBy,
		acc.UpdatedAt,
		acc.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update account status",
			"id", acc.ID.String(),
			"status", string(acc.Status),
			"error", err,
		)
		return fmt.Errorf("failed to update account status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{AccountID: acc.ID}
	}

	return nil
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var (
		acc    account.Account
		status string
	)
	err := row.Scan(
		&acc.ID,
		&acc.OwnerID,
		&status,
		&acc.Metadata.TotalTransactions,
		&acc.Metadata.LastActivity,
		&acc.Metadata.FreezeReason,
		&acc.Metadata.StatusReason,
		&acc.Metadata.StatusChangedAt,
		&acc.Metadata.StatusChangedBy,
		&acc.CreatedBy,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	acc.Status = shared.AccountStatus(status)
	return &acc, nil
}

func scanBalance(row rowScanner) (*account.Balance, error) {
	var (
		balance account.Balance
		avail   string
		pending string
	)
	err := row.Scan(&balance.AccountID, &avail, &pending, &balance.Version, &balance.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if balance.Available, err = parseDecimal("available", avail); err != nil {
		return nil, err
	}
	if balance.Pending, err = parseDecimal("pending", pending); err != nil {
		return nil, err
	}
	return &balance, nil
}
