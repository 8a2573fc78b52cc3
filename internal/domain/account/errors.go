package account

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/token-wallet-ledger/internal/domain/shared"
)

// Common errors
var (
	ErrEmptyOwnerID = fmt.Errorf("owner id cannot be empty: %w", shared.ErrInvalidRequest)
	ErrEmptyReason  = fmt.Errorf("status change reason cannot be empty: %w", shared.ErrInvalidRequest)
)

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountID.String()
}

func (e ErrAccountNotFound) Unwrap() error {
	return shared.ErrNotFound
}

// ErrOwnerAlreadyExists indicates a second account for the same owner
type ErrOwnerAlreadyExists struct {
	OwnerID string
}

func (e ErrOwnerAlreadyExists) Error() string {
	return "account for owner already exists: " + e.OwnerID
}

func (e ErrOwnerAlreadyExists) Unwrap() error {
	return shared.ErrAlreadyExists
}

// ErrWalletInactive indicates a mutation against a frozen or suspended account
type ErrWalletInactive struct {
	AccountID uuid.UUID
	Status    shared.AccountStatus
}

func (e ErrWalletInactive) Error() string {
	return fmt.Sprintf("wallet %s is %s", e.AccountID, e.Status)
}

func (e ErrWalletInactive) Unwrap() error {
	return shared.ErrWalletInactive
}

// ErrInvalidAmount indicates a non-positive or unrepresentable amount
type ErrInvalidAmount struct {
	Amount decimal.Decimal
	Reason string
}

func (e ErrInvalidAmount) Error() string {
	if e.Reason != "" {
		return "invalid amount " + e.Amount.String() + ": " + e.Reason
	}
	return "amount must be positive, got " + e.Amount.String()
}

func (e ErrInvalidAmount) Unwrap() error {
	return shared.ErrInvalidAmount
}

// ErrInsufficientFunds indicates a debit or hold larger than available
type ErrInsufficientFunds struct {
	AccountID uuid.UUID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds in account %s: available %s, requested %s", e.AccountID, e.Available, e.Requested)
}

func (e ErrInsufficientFunds) Unwrap() error {
	return shared.ErrInsufficientFunds
}

// ErrInsufficientPending indicates a release larger than pending
type ErrInsufficientPending struct {
	AccountID uuid.UUID
	Pending   decimal.Decimal
	Requested decimal.Decimal
}

func (e ErrInsufficientPending) Error() string {
	return fmt.Sprintf("insufficient pending funds in account %s: pending %s, requested %s", e.AccountID, e.Pending, e.Requested)
}

func (e ErrInsufficientPending) Unwrap() error {
	return shared.ErrInsufficientPending
}

// ErrInvalidReleaseType indicates an unknown release type
type ErrInvalidReleaseType struct {
	ReleaseType shared.ReleaseType
}

func (e ErrInvalidReleaseType) Error() string {
	return "invalid release type: " + string(e.ReleaseType)
}

func (e ErrInvalidReleaseType) Unwrap() error {
	return shared.ErrInvalidRequest
}

// ErrInvalidTransition indicates a lifecycle change the state machine forbids
type ErrInvalidTransition struct {
	AccountID uuid.UUID
	From      shared.AccountStatus
	To        shared.AccountStatus
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("account %s cannot move from %s to %s", e.AccountID, e.From, e.To)
}

func (e ErrInvalidTransition) Unwrap() error {
	return shared.ErrInvalidStatusTransition
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	AccountID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for account: " + e.AccountID.String()
}

func (e ErrConcurrentModification) Unwrap() error {
	return shared.ErrConcurrentModification
}

// IsNotFound reports whether err is an ErrAccountNotFound
func IsNotFound(err error) bool {
	var target ErrAccountNotFound
	return errors.As(err, &target)
}
