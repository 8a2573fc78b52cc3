package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/token-wallet-ledger/internal/domain/shared"
)

// Entry is an immutable record of one balance-affecting event
type Entry struct {
	ID             uuid.UUID              `json:"id"`
	AccountID      uuid.UUID              `json:"account_id"`
	Type           shared.EntryType       `json:"type"`
	Subtype        string                 `json:"subtype,omitempty"` // Release disposition for release entries
	Amount         decimal.Decimal        `json:"amount"`
	Reference      string                 `json:"reference,omitempty"`
	Meta           map[string]any         `json:"meta,omitempty"`
	BalanceBefore  shared.BalanceSnapshot `json:"balance_before"`
	BalanceAfter   shared.BalanceSnapshot `json:"balance_after"`
	IdempotencyKey string                 `json:"idempotency_key"`
	ProcessedBy    string                 `json:"processed_by,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// NewEntry builds an entry for a mutation that moved the balance from before to after
func NewEntry(
	accountID uuid.UUID,
	entryType shared.EntryType,
	amount decimal.Decimal,
	before, after shared.BalanceSnapshot,
	idempotencyKey string,
	now time.Time,
) *Entry {
	return &Entry{
		ID:             uuid.New(),
		AccountID:      accountID,
		Type:           entryType,
		Amount:         amount,
		BalanceBefore:  before,
		BalanceAfter:   after,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
	}
}

// IsRelease reports whether the entry moved funds out of pending
func (e *Entry) IsRelease() bool {
	return e.Type == shared.EntryTypeRelease
}

// ReleaseType returns the release disposition, empty for non-release entries
func (e *Entry) ReleaseType() shared.ReleaseType {
	if !e.IsRelease() {
		return ""
	}
	return shared.ReleaseType(e.Subtype)
}
