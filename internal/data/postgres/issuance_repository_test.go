package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/token-wallet-ledger/internal/domain/issuance"
	"github.com/token-wallet-ledger/internal/domain/shared"
)

func TestIssuanceRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIssuanceRepository(newTestLogger(), mock)
	calc, err := issuance.Calculate(decimal.NewFromInt(100), decimal.RequireFromString("0.25"), decimal.Zero, decimal.NewFromInt(1))
	require.NoError(t, err)
	record := issuance.NewRecord(uuid.New(), "pro-monthly", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), calc, time.Now())
	query := regexp.QuoteMeta(`ON CONFLICT (account_id, plan_id, effective_from) DO NOTHING`)
	args := []any{
		record.ID, record.AccountID, "pro-monthly", "100", "0.25", "400", "1", "0", "400",
		record.EffectiveFrom, record.LedgerEntryID, false, []byte(`{}`), record.CreatedAt,
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(args...).WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Create(ctx, record))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("period already issued", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(args...).WillReturnResult(pgxmock.NewResult("INSERT", 0))

		err := repo.Create(ctx, record)
		var dupErr issuance.ErrDuplicateIssuance
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, "pro-monthly", dupErr.PlanID)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIssuanceRepository_GetByPeriod(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIssuanceRepository(newTestLogger(), mock)
	accountID := uuid.New()
	entryID := uuid.New()
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`WHERE account_id = $1 AND plan_id = $2 AND effective_from = $3`)
	columns := []string{
		"id", "account_id", "plan_id", "plan_price", "reference_unit_price",
		"base_tokens", "proration_factor", "bonus", "tokens_issued",
		"effective_from", "ledger_entry_id", "price_stale", "metadata", "created_at",
	}

	t.Run("found", func(t *testing.T) {
		rows := pgxmock.NewRows(columns).AddRow(
			uuid.New(), accountID, "pro-monthly", "100.000000000000000000", "0.250000000000000000",
			"400.000000000000000000", "1.000000000000000000", "0.000000000000000000", "400.000000000000000000",
			from, &entryID, true, []byte(`{"price_as_of":"2026-01-31T23:00:00Z"}`), time.Now(),
		)
		mock.ExpectQuery(query).WithArgs(accountID, "pro-monthly", from).WillReturnRows(rows)

		record, err := repo.GetByPeriod(ctx, accountID, "pro-monthly", from)
		require.NoError(t, err)
		assert.True(t, record.TokensIssued.Equal(decimal.NewFromInt(400)))
		require.NotNil(t, record.LedgerEntryID)
		assert.Equal(t, entryID, *record.LedgerEntryID)
		assert.True(t, record.PriceStale)
		assert.Equal(t, "2026-01-31T23:00:00Z", record.Metadata["price_as_of"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(accountID, "pro-monthly", from).WillReturnError(pgx.ErrNoRows)

		record, err := repo.GetByPeriod(ctx, accountID, "pro-monthly", from)
		assert.Nil(t, record)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
