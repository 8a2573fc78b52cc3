package account

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/token-wallet-ledger/internal/domain/shared"
)

// Metadata holds per-account counters and the audit trail of the last status change
type Metadata struct {
	TotalTransactions int64      `json:"total_transactions"`
	LastActivity      *time.Time `json:"last_activity,omitempty"`
	FreezeReason      string     `json:"freeze_reason,omitempty"`
	StatusReason      string     `json:"status_reason,omitempty"`
	StatusChangedAt   *time.Time `json:"status_changed_at,omitempty"`
	StatusChangedBy   string     `json:"status_changed_by,omitempty"`
}

// Account represents a custodial wallet owned by a single owner
type Account struct {
	ID        uuid.UUID            `json:"id"`
	OwnerID   string               `json:"owner_id"`
	Status    shared.AccountStatus `json:"status"`
	Metadata  Metadata             `json:"metadata"`
	CreatedBy string               `json:"created_by"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewAccount creates an active account for ownerID
func NewAccount(ownerID string, createdBy string, now time.Time) (*Account, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrEmptyOwnerID
	}

	return &Account{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Status:    shared.AccountStatusActive,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsActive reports whether the account accepts mutations
func (a *Account) IsActive() bool {
	return a.Status == shared.AccountStatusActive
}

// EnsureActive returns ErrWalletInactive unless the account is active
func (a *Account) EnsureActive() error {
	if !a.IsActive() {
		return ErrWalletInactive{AccountID: a.ID, Status: a.Status}
	}
	return nil
}

// RecordActivity bumps the transaction counter after a successful mutation
func (a *Account) RecordActivity(now time.Time) {
	a.Metadata.TotalTransactions++
	a.Metadata.LastActivity = &now
	a.UpdatedAt = now
}

// Freeze moves an active account to frozen
func (a *Account) Freeze(reason, actor string, now time.Time) error {
	if err := a.transition(shared.AccountStatusFrozen, reason, actor, now); err != nil {
		return err
	}
	a.Metadata.FreezeReason = reason
	return nil
}

// Suspend moves an active account to suspended
func (a *Account) Suspend(reason, actor string, now time.Time) error {
	return a.transition(shared.AccountStatusSuspended, reason, actor, now)
}

// Reactivate returns a frozen or suspended account to active
func (a *Account) Reactivate(reason, actor string, now time.Time) error {
	if err := a.transition(shared.AccountStatusActive, reason, actor, now); err != nil {
		return err
	}
	a.Metadata.FreezeReason = ""
	return nil
}

func (a *Account) transition(to shared.AccountStatus, reason, actor string, now time.Time) error {
	if !canTransition(a.Status, to) {
		return ErrInvalidTransition{AccountID: a.ID, From: a.Status, To: to}
	}
	if strings.TrimSpace(reason) == "" {
		return ErrEmptyReason
	}

	a.Status = to
	a.Metadata.StatusReason = reason
	a.Metadata.StatusChangedAt = &now
	a.Metadata.StatusChangedBy = actor
	a.UpdatedAt = now
	return nil
}

// Lifecycle is active -> frozen -> active and active -> suspended -> active.
func canTransition(from, to shared.AccountStatus) bool {
	switch from {
	case shared.AccountStatusActive:
		return to == shared.AccountStatusFrozen || to == shared.AccountStatusSuspended
	case shared.AccountStatusFrozen, shared.AccountStatusSuspended:
		return to == shared.AccountStatusActive
	}
	return false
}
