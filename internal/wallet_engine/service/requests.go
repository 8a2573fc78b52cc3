package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/issuance"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/shared"
)

// CreateAccountRequest opens a wallet for an owner
type CreateAccountRequest struct {
	OwnerID       string
	CreatedBy     string
	CorrelationID string
}

// MutationRequest drives Credit, Debit, Hold and Release.
// EntryType is only read by Credit; ReleaseType only by Release.
type MutationRequest struct {
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	EntryType      shared.EntryType
	ReleaseType    shared.ReleaseType
	Reference      string
	Meta           map[string]any
	IdempotencyKey string
	ProcessedBy    string
	CorrelationID  string
}

// StatusChangeRequest drives Freeze, Suspend and Reactivate
type StatusChangeRequest struct {
	AccountID     uuid.UUID
	Reason        string
	Actor         string
	CorrelationID string
}

// IssuanceRequest converts a plan price into tokens at an explicit reference price
type IssuanceRequest struct {
	AccountID       uuid.UUID
	PlanID          string
	PlanPrice       decimal.Decimal
	ReferencePrice  decimal.Decimal
	EffectiveFrom   time.Time
	Bonus           decimal.Decimal
	ProrationFactor decimal.Decimal
	ProcessedBy     string
	CorrelationID   string
}

// MarketIssuanceRequest is an IssuanceRequest priced from the reference feed
type MarketIssuanceRequest struct {
	AccountID       uuid.UUID
	PlanID          string
	PlanPrice       decimal.Decimal
	Symbol          string
	EffectiveFrom   time.Time
	Bonus           decimal.Decimal
	ProrationFactor decimal.Decimal
	ProcessedBy     string
	CorrelationID   string
}

// BalanceView is the read model returned by GetBalance and every mutation
type BalanceView struct {
	AccountID   uuid.UUID       `json:"account_id"`
	Available   decimal.Decimal `json:"available"`
	Pending     decimal.Decimal `json:"pending"`
	Total       decimal.Decimal `json:"total"`
	LastUpdated time.Time       `json:"last_updated"`
}

// AccountResult is returned by CreateAccount
type AccountResult struct {
	Account *account.Account `json:"account"`
	Balance BalanceView      `json:"balance"`
}

// MutationResult is rebuilt from the stored entry, so a replay returns the
// same value as the call that applied it.
type MutationResult struct {
	Entry    *ledger.Entry `json:"entry"`
	Balance  BalanceView   `json:"balance"`
	Replayed bool          `json:"-"`
}

// IssuanceResult reports the record for the period and whether it already existed
type IssuanceResult struct {
	Record    *issuance.Record `json:"record"`
	Duplicate bool             `json:"duplicate"`
}

func balanceViewOf(b *account.Balance) BalanceView {
	return BalanceView{
		AccountID:   b.AccountID,
		Available:   b.Available,
		Pending:     b.Pending,
		Total:       b.Total(),
		LastUpdated: b.UpdatedAt,
	}
}

func resultFromEntry(entry *ledger.Entry) *MutationResult {
	after := entry.BalanceAfter
	return &MutationResult{
		Entry: entry,
		Balance: BalanceView{
			AccountID:   entry.AccountID,
			Available:   after.Available,
			Pending:     after.Pending,
			Total:       after.Total(),
			LastUpdated: entry.CreatedAt,
		},
	}
}
