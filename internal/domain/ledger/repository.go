package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/token-wallet-ledger/internal/domain/shared"
)

// Repository appends and reads ledger entries in the transactional store
type Repository interface {
	// Append inserts entry; returns ErrDuplicateIdempotencyKey when the key is taken
	Append(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Entry, error)
}

// Archive is the queryable audit copy of the ledger used for history and reconciliation
type Archive interface {
	Store(ctx context.Context, entry *Entry) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Entry, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// ErrEntryNotFound indicates missing ledger entry
type ErrEntryNotFound struct {
	Key string
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.Key
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	// An empty target Key matches any ErrEntryNotFound
	if t.Key == "" {
		return true
	}
	return e.Key == t.Key
}

func (e ErrEntryNotFound) Unwrap() error {
	return shared.ErrNotFound
}

// ErrDuplicateIdempotencyKey indicates the idempotency key was already used
type ErrDuplicateIdempotencyKey struct {
	IdempotencyKey string
}

func (e ErrDuplicateIdempotencyKey) Error() string {
	return fmt.Sprintf("idempotency key already used: %s", e.IdempotencyKey)
}

func (e ErrDuplicateIdempotencyKey) Unwrap() error {
	return shared.ErrDuplicateIdempotencyKey
}
