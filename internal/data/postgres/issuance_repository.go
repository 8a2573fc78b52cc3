package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/token-wallet-ledger/internal/domain/issuance"
	"github.com/token-wallet-ledger/internal/platform/persistence"
)

const issuanceColumns = `
		id, account_id, plan_id, plan_price::text, reference_unit_price::text,
		base_tokens::text, proration_factor::text, bonus::text, tokens_issued::text,
		effective_from, ledger_entry_id, price_stale, metadata, created_at`

// IssuanceRepository implements the issuance.Repository interface for PostgreSQL
type IssuanceRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewIssuanceRepository creates a new PostgreSQL issuance repository bound to querier
func NewIssuanceRepository(logger *slog.Logger, querier persistence.Querier) *IssuanceRepository {
	return &IssuanceRepository{
		querier: querier,
		logger:  logger,
	}
}

// WithTx returns a copy of the repository that runs every statement on tx
func (r *IssuanceRepository) WithTx(tx pgx.Tx) *IssuanceRepository {
	return &IssuanceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts an issuance record. A record for the same account, plan and
// effective period already present is reported as ErrDuplicateIssuance.
func (r *IssuanceRepository) Create(ctx context.Context, record *issuance.Record) error {
	query := `
		INSERT INTO issuance_records (
			id, account_id, plan_id, plan_price, reference_unit_price,
			base_tokens, proration_factor, bonus, tokens_issued,
			effective_from, ledger_entry_id, price_stale, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (account_id, plan_id, effective_from) DO NOTHING
	`

	metadata, err := marshalJSONMap(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode issuance metadata: %w", err)
	}

	result, err := r.querier.Exec(ctx, query,
		record.ID,
		record.AccountID,
		record.PlanID,
		record.PlanPrice.String(),
		record.ReferenceUnitPrice.String(),
		record.BaseTokens.String(),
		record.ProrationFactor.String(),
		record.Bonus.String(),
		record.TokensIssued.String(),
		record.EffectiveFrom,
		record.LedgerEntryID,
		record.PriceStale,
		metadata,
		record.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create issuance record",
			"account_id", record.AccountID.String(),
			"plan_id", record.PlanID,
			"error", err,
		)
		return fmt.Errorf("failed to create issuance record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return issuance.ErrDuplicateIssuance{
			AccountID:     record.AccountID,
			PlanID:        record.PlanID,
			EffectiveFrom: record.EffectiveFrom,
		}
	}

	return nil
}

// GetByPeriod retrieves the record of an account, plan and effective period
func (r *IssuanceRepository) GetByPeriod(ctx context.Context, accountID uuid.UUID, planID string, effectiveFrom time.Time) (*issuance.Record, error) {
	query := `SELECT` + issuanceColumns + `
		FROM issuance_records
		WHERE account_id = $1 AND plan_id = $2 AND effective_from = $3
	`

	record, err := scanIssuanceRecord(r.querier.QueryRow(ctx, query, accountID, planID, effectiveFrom.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, issuance.ErrRecordNotFound{AccountID: accountID, PlanID: planID, EffectiveFrom: effectiveFrom}
		}
		r.logger.Error("Failed to get issuance record",
			"account_id", accountID.String(),
			"plan_id", planID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get issuance record: %w", err)
	}

	return record, nil
}

// ListByAccountID retrieves a page of an account's issuance records, newest first
func (r *IssuanceRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*issuance.Record, error) {
	query := `SELECT` + issuanceColumns + `
		FROM issuance_records
		WHERE account_id = $1
		ORDER BY effective_from DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list issuance records", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to list issuance records: %w", err)
	}
	defer rows.Close()

	var records []*issuance.Record
	for rows.Next() {
		record, err := scanIssuanceRecord(rows)
		if err != nil {
			r.logger.Error("Failed to scan issuance record", "error", err)
			return nil, fmt.Errorf("failed to scan issuance record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over issuance records", "error", err)
		return nil, fmt.Errorf("error iterating over issuance records: %w", err)
	}

	return records, nil
}

func scanIssuanceRecord(row rowScanner) (*issuance.Record, error) {
	var (
		record    issuance.Record
		planPrice string
		refPrice  string
		base      string
		factor    string
		bonus     string
		tokens    string
		metadata  []byte
	)
	err := row.Scan(
		&record.ID,
		&record.AccountID,
		&record.PlanID,
		&planPrice,
		&refPrice,
		&base,
		&factor,
		&bonus,
		&tokens,
		&record.EffectiveFrom,
		&record.LedgerEntryID,
		&record.PriceStale,
		&metadata,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if record.PlanPrice, err = parseDecimal("plan_price", planPrice); err != nil {
		return nil, err
	}
	if record.ReferenceUnitPrice, err = parseDecimal("reference_unit_price", refPrice); err != nil {
		return nil, err
	}
	if record.BaseTokens, err = parseDecimal("base_tokens", base); err != nil {
		return nil, err
	}
	if record.ProrationFactor, err = parseDecimal("proration_factor", factor); err != nil {
		return nil, err
	}
	if record.Bonus, err = parseDecimal("bonus", bonus); err != nil {
		return nil, err
	}
	if record.TokensIssued, err = parseDecimal("tokens_issued", tokens); err != nil {
		return nil, err
	}
	if record.Metadata, err = unmarshalJSONMap(metadata); err != nil {
		return nil, fmt.Errorf("failed to decode issuance metadata: %w", err)
	}

	return &record, nil
}
