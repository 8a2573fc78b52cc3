package issuance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/token-wallet-ledger/internal/domain/shared"
)

// Repository manages issuance record persistence
type Repository interface {
	// Create inserts record; returns ErrDuplicateIssuance when the period was already issued
	Create(ctx context.Context, record *Record) error
	GetByPeriod(ctx context.Context, accountID uuid.UUID, planID string, effectiveFrom time.Time) (*Record, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Record, error)
}

// ErrRecordNotFound indicates no issuance exists for the period
type ErrRecordNotFound struct {
	AccountID     uuid.UUID
	PlanID        string
	EffectiveFrom time.Time
}

func (e ErrRecordNotFound) Error() string {
	return fmt.Sprintf("issuance record not found: account %s plan %s from %s",
		e.AccountID, e.PlanID, e.EffectiveFrom.UTC().Format(time.RFC3339))
}

func (e ErrRecordNotFound) Unwrap() error {
	return shared.ErrNotFound
}

// ErrDuplicateIssuance indicates the (account, plan, effective period) triple is taken
type ErrDuplicateIssuance struct {
	AccountID     uuid.UUID
	PlanID        string
	EffectiveFrom time.Time
}

func (e ErrDuplicateIssuance) Error() string {
	return fmt.Sprintf("issuance already recorded: account %s plan %s from %s",
		e.AccountID, e.PlanID, e.EffectiveFrom.UTC().Format(time.RFC3339))
}

func (e ErrDuplicateIssuance) Unwrap() error {
	return shared.ErrAlreadyExists
}
