package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/platform/persistence"
)

const ledgerEntryColumns = `
		id, account_id, type, COALESCE(subtype, ''), amount::text, reference, meta,
		balance_before_available::text, balance_before_pending::text,
		balance_after_available::text, balance_after_pending::text,
		idempotency_key, processed_by, created_at`

// LedgerRepository implements the ledger.Repository interface for PostgreSQL
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository bound to querier
func NewLedgerRepository(logger *slog.Logger, querier persistence.Querier) *LedgerRepository {
	return &LedgerRepository{
		querier: querier,
		logger:  logger,
	}
}

// WithTx returns a copy of the repository that runs every statement on tx
func (r *LedgerRepository) WithTx(tx pgx.Tx) *LedgerRepository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append inserts an entry. The insert yields to an existing row with the same
// idempotency key instead of failing, which keeps the surrounding transaction
// usable; the caller receives ErrDuplicateIdempotencyKey.
func (r *LedgerRepository) Append(ctx context.Context, entry *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (
			id, account_id, type, subtype, amount, reference, meta,
			balance_before_available, balance_before_pending,
			balance_after_available, balance_after_pending,
			idempotency_key, processed_by, created_at
		)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	meta, err := marshalJSONMap(entry.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode ledger entry meta: %w", err)
	}

	result, err := r.querier.Exec(ctx, query,
		entry.ID,
		entry.AccountID,
		string(entry.Type),
		entry.Subtype,
		entry.Amount.String(),
		entry.Reference,
		meta,
		entry.BalanceBefore.Available.String(),
		entry.BalanceBefore.Pending.String(),
		entry.BalanceAfter.Available.String(),
		entry.BalanceAfter.Pending.String(),
		entry.IdempotencyKey,
		entry.ProcessedBy,
		entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ledger.ErrDuplicateIdempotencyKey{IdempotencyKey: entry.IdempotencyKey}
		}
		r.logger.Error("Failed to append ledger entry",
			"account_id", entry.AccountID.String(),
			"type", string(entry.Type),
			"error", err,
		)
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ledger.ErrDuplicateIdempotencyKey{IdempotencyKey: entry.IdempotencyKey}
	}

	return nil
}

// GetByID retrieves an entry by its ID
func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	query := `SELECT` + ledgerEntryColumns + `
		FROM ledger_entries
		WHERE id = $1
	`

	entry, err := scanLedgerEntry(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound{Key: id.String()}
		}
		r.logger.Error("Failed to get ledger entry", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return entry, nil
}

// GetByIdempotencyKey retrieves the entry written under idempotencyKey.
// Returns ErrEntryNotFound if the key is unused.
func (r *LedgerRepository) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*ledger.Entry, error) {
	query := `SELECT` + ledgerEntryColumns + `
		FROM ledger_entries
		WHERE idempotency_key = $1
	`

	entry, err := scanLedgerEntry(r.querier.QueryRow(ctx, query, idempotencyKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound{Key: idempotencyKey}
		}
		r.logger.Error("Failed to get ledger entry by idempotency key",
			"idempotency_key", idempotencyKey,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get ledger entry by idempotency key: %w", err)
	}

	return entry, nil
}

func scanLedgerEntry(row rowScanner) (*ledger.Entry, error) {
	var (
		entry         ledger.Entry
		entryType     string
		amount        string
		meta          []byte
		beforeAvail   string
		beforePending string
		afterAvail    string
		afterPending  string
	)
	err := row.Scan(
		&entry.ID,
		&entry.AccountID,
		&entryType,
		&entry.Subtype,
		&amount,
		&entry.Reference,
		&meta,
		&beforeAvail,
		&beforePending,
		&afterAvail,
		&afterPending,
		&entry.IdempotencyKey,
		&entry.ProcessedBy,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Type = shared.EntryType(entryType)

	if entry.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if entry.BalanceBefore.Available, err = parseDecimal("balance_before_available", beforeAvail); err != nil {
		return nil, err
	}
	if entry.BalanceBefore.Pending, err = parseDecimal("balance_before_pending", beforePending); err != nil {
		return nil, err
	}
	if entry.BalanceAfter.Available, err = parseDecimal("balance_after_available", afterAvail); err != nil {
		return nil, err
	}
	if entry.BalanceAfter.Pending, err = parseDecimal("balance_after_pending", afterPending); err != nil {
		return nil, err
	}
	if entry.Meta, err = unmarshalJSONMap(meta); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entry meta: %w", err)
	}

	return &entry, nil
}
