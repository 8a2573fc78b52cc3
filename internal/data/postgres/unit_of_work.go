package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/issuance"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/outbox"
	"github.com/token-wallet-ledger/internal/domain/uow"
	"github.com/token-wallet-ledger/internal/platform/persistence"
)

// UnitOfWork implements uow.UnitOfWork on top of a pgx transaction.
// Same-account operations serialize on the row locks taken by
// AccountRepository.LockForUpdate, so read committed is sufficient.
type UnitOfWork struct {
	db        persistence.TxBeginner
	txOptions pgx.TxOptions
	accounts  *AccountRepository
	ledger    *LedgerRepository
	issuances *IssuanceRepository
	outbox    *OutboxRepository
}

var (
	_ uow.UnitOfWork      = (*UnitOfWork)(nil)
	_ account.Repository  = (*AccountRepository)(nil)
	_ ledger.Repository   = (*LedgerRepository)(nil)
	_ issuance.Repository = (*IssuanceRepository)(nil)
	_ outbox.Repository   = (*OutboxRepository)(nil)
)

// NewUnitOfWork creates a unit of work that begins its transactions on db
func NewUnitOfWork(logger *slog.Logger, db persistence.TxBeginner) *UnitOfWork {
	return &UnitOfWork{
		db:        db,
		txOptions: pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
		accounts:  &AccountRepository{logger: logger},
		ledger:    &LedgerRepository{logger: logger},
		issuances: &IssuanceRepository{logger: logger},
		outbox:    &OutboxRepository{logger: logger},
	}
}

// Execute runs fn in one transaction with repositories bound to it
func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context, repos uow.Repositories) error) error {
	return persistence.RunInTx(ctx, u.db, u.txOptions, func(tx pgx.Tx) error {
		return fn(ctx, &txRepositories{
			accounts:  u.accounts.WithTx(tx),
			ledger:    u.ledger.WithTx(tx),
			issuances: u.issuances.WithTx(tx),
			outbox:    u.outbox.WithTx(tx),
		})
	})
}

type txRepositories struct {
	accounts  *AccountRepository
	ledger    *LedgerRepository
	issuances *IssuanceRepository
	outbox    *OutboxRepository
}

func (r *txRepositories) Accounts() account.Repository   { return r.accounts }
func (r *txRepositories) Ledger() ledger.Repository      { return r.ledger }
func (r *txRepositories) Issuances() issuance.Repository { return r.issuances }
func (r *txRepositories) Outbox() outbox.Repository      { return r.outbox }
