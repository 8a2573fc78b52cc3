// Package uow defines the unit of work through which every wallet operation
// reads and writes the transactional store.
package uow

import (
	"context"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/issuance"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/outbox"
)

// Repositories are the stores bound to one open unit of work
type Repositories interface {
	Accounts() account.Repository
	Ledger() ledger.Repository
	Issuances() issuance.Repository
	Outbox() outbox.Repository
}

// UnitOfWork runs fn against repositories bound to a single transaction.
// The transaction commits when fn returns nil and rolls back on any error or
// panic, so fn never observes a partially applied state.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
