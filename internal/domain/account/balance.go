package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/token-wallet-ledger/internal/domain/shared"
)

// Balance is the mutable projection of an account's available and pending funds
type Balance struct {
	AccountID uuid.UUID       `json:"account_id"`
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
	Version   int64           `json:"-"` // For optimistic locking
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewBalance creates the zero balance that accompanies a new account
func NewBalance(accountID uuid.UUID, now time.Time) *Balance {
	return &Balance{
		AccountID: accountID,
		Available: decimal.Zero,
		Pending:   decimal.Zero,
		Version:   1,
		UpdatedAt: now,
	}
}

// Total returns available plus pending
func (b *Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Pending)
}

// Snapshot captures the current available/pending pair
func (b *Balance) Snapshot() shared.BalanceSnapshot {
	return shared.BalanceSnapshot{Available: b.Available, Pending: b.Pending}
}

// Credit adds amount to available
func (b *Balance) Credit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}

	b.Available = b.Available.Add(amount)
	b.Version++
	return nil
}

// Debit removes amount from available
func (b *Balance) Debit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if b.Available.LessThan(amount) {
		return ErrInsufficientFunds{AccountID: b.AccountID, Available: b.Available, Requested: amount}
	}

	b.Available = b.Available.Sub(amount)
	b.Version++
	return nil
}

// Hold moves amount from available to pending
func (b *Balance) Hold(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if b.Available.LessThan(amount) {
		return ErrInsufficientFunds{AccountID: b.AccountID, Available: b.Available, Requested: amount}
	}

	b.Available = b.Available.Sub(amount)
	b.Pending = b.Pending.Add(amount)
	b.Version++
	return nil
}

// Release takes amount out of pending; a restore puts it back into available
func (b *Balance) Release(amount decimal.Decimal, releaseType shared.ReleaseType) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if !releaseType.Valid() {
		return ErrInvalidReleaseType{ReleaseType: releaseType}
	}
	if b.Pending.LessThan(amount) {
		return ErrInsufficientPending{AccountID: b.AccountID, Pending: b.Pending, Requested: amount}
	}

	b.Pending = b.Pending.Sub(amount)
	if releaseType == shared.ReleaseTypeRestore {
		b.Available = b.Available.Add(amount)
	}
	b.Version++
	return nil
}

// ValidateAmount rejects zero and negative amounts, and amounts a money
// column would round or overflow.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount{Amount: amount}
	}
	if !shared.FitsNumeric(amount) {
		return ErrInvalidAmount{Amount: amount, Reason: "exceeds 18 decimal places or 20 integer digits"}
	}
	return nil
}
