package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines account and balance persistence operations
type Repository interface {
	// Create inserts the account row; returns ErrOwnerAlreadyExists on owner collision
	Create(ctx context.Context, account *Account) error
	CreateBalance(ctx context.Context, balance *Balance) error

	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByOwnerID(ctx context.Context, ownerID string) (*Account, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (*Balance, error)

	// LockForUpdate acquires a pessimistic lock on the account and its balance
	LockForUpdate(ctx context.Context, accountID uuid.UUID) (*Account, *Balance, error)

	// UpdateBalance uses optimistic locking against expectedVersion
	UpdateBalance(ctx context.Context, balance *Balance, expectedVersion int64) error
	UpdateActivity(ctx context.Context, account *Account) error
	UpdateStatus(ctx context.Context, account *Account) error
}
