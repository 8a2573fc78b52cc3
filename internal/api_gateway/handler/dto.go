package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/issuance"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

// CreateAccountRequest represents a request to open a wallet
type CreateAccountRequest struct {
	OwnerID   string `json:"owner_id" binding:"required"`
	CreatedBy string `json:"created_by,omitempty"`
}

// MutationRequest is the body of credit, debit, hold and release calls.
// The Idempotency-Key header takes precedence over IdempotencyKey.
type MutationRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	EntryType      string          `json:"entry_type,omitempty" binding:"omitempty,oneof=credit issuance"`
	ReleaseType    string          `json:"release_type,omitempty" binding:"omitempty,oneof=restore consume forfeit"`
	Reference      string          `json:"reference,omitempty"`
	Meta           map[string]any  `json:"meta,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	ProcessedBy    string          `json:"processed_by,omitempty"`
}

// StatusChangeRequest is the body of freeze, suspend and reactivate calls
type StatusChangeRequest struct {
	Reason string `json:"reason" binding:"required"`
	Actor  string `json:"actor,omitempty"`
}

// IssuanceRequest issues plan tokens. Without ReferencePrice the price is
// read from the feed for Symbol.
type IssuanceRequest struct {
	PlanID          string           `json:"plan_id" binding:"required"`
	PlanPrice       decimal.Decimal  `json:"plan_price"`
	ReferencePrice  *decimal.Decimal `json:"reference_price,omitempty"`
	Symbol          string           `json:"symbol,omitempty"`
	EffectiveFrom   time.Time        `json:"effective_from" binding:"required"`
	Bonus           decimal.Decimal  `json:"bonus"`
	ProrationFactor *decimal.Decimal `json:"proration_factor,omitempty"`
	ProcessedBy     string           `json:"processed_by,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID                string `json:"id"`
	OwnerID           string `json:"owner_id"`
	Status            string `json:"status"`
	StatusReason      string `json:"status_reason,omitempty"`
	StatusChangedBy   string `json:"status_changed_by,omitempty"`
	TotalTransactions int64  `json:"total_transactions"`
	LastActivity      string `json:"last_activity,omitempty"`
	CreatedBy         string `json:"created_by,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// BalanceResponse represents a balance in API responses
type BalanceResponse struct {
	AccountID   string `json:"account_id"`
	Available   string `json:"available"`
	Pending     string `json:"pending"`
	Total       string `json:"total"`
	LastUpdated string `json:"last_updated"`
}

// AccountWithBalanceResponse is returned when an account is opened
type AccountWithBalanceResponse struct {
	Account AccountResponse `json:"account"`
	Balance BalanceResponse `json:"balance"`
}

// EntryResponse represents a ledger entry in API responses
type EntryResponse struct {
	ID              string         `json:"id"`
	AccountID       string         `json:"account_id"`
	Type            string         `json:"type"`
	Subtype         string         `json:"subtype,omitempty"`
	Amount          string         `json:"amount"`
	Reference       string         `json:"reference,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
	AvailableBefore string         `json:"available_before"`
	PendingBefore   string         `json:"pending_before"`
	AvailableAfter  string         `json:"available_after"`
	PendingAfter    string         `json:"pending_after"`
	IdempotencyKey  string         `json:"idempotency_key"`
	ProcessedBy     string         `json:"processed_by,omitempty"`
	CreatedAt       string         `json:"created_at"`
}

// MutationResponse is returned by every balance mutation
type MutationResponse struct {
	Entry    EntryResponse   `json:"entry"`
	Balance  BalanceResponse `json:"balance"`
	Replayed bool            `json:"replayed"`
}

// IssuanceResponse represents an issuance record in API responses
type IssuanceResponse struct {
	ID                 string         `json:"id"`
	AccountID          string         `json:"account_id"`
	PlanID             string         `json:"plan_id"`
	PlanPrice          string         `json:"plan_price"`
	ReferenceUnitPrice string         `json:"reference_unit_price"`
	BaseTokens         string         `json:"base_tokens"`
	ProrationFactor    string         `json:"proration_factor"`
	Bonus              string         `json:"bonus"`
	TokensIssued       string         `json:"tokens_issued"`
	EffectiveFrom      string         `json:"effective_from"`
	LedgerEntryID      string         `json:"ledger_entry_id,omitempty"`
	PriceStale         bool           `json:"price_stale"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	Duplicate          bool           `json:"duplicate"`
	CreatedAt          string         `json:"created_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func mapAccountToResponse(acc *account.Account) AccountResponse {
	resp := AccountResponse{
		ID:                acc.ID.String(),
		OwnerID:           acc.OwnerID,
		Status:            string(acc.Status),
		StatusReason:      acc.Metadata.StatusReason,
		StatusChangedBy:   acc.Metadata.StatusChangedBy,
		TotalTransactions: acc.Metadata.TotalTransactions,
		CreatedBy:         acc.CreatedBy,
		CreatedAt:         formatTime(acc.CreatedAt),
		UpdatedAt:         formatTime(acc.UpdatedAt),
	}
	if acc.Metadata.LastActivity != nil {
		resp.LastActivity = formatTime(*acc.Metadata.LastActivity)
	}
	return resp
}

func mapBalanceToResponse(b service.BalanceView) BalanceResponse {
	return BalanceResponse{
		AccountID:   b.AccountID.String(),
		Available:   b.Available.String(),
		Pending:     b.Pending.String(),
		Total:       b.Total.String(),
		LastUpdated: formatTime(b.LastUpdated),
	}
}

func mapEntryToResponse(e *ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:              e.ID.String(),
		AccountID:       e.AccountID.String(),
		Type:            string(e.Type),
		Subtype:         e.Subtype,
		Amount:          e.Amount.String(),
		Reference:       e.Reference,
		Meta:            e.Meta,
		AvailableBefore: e.BalanceBefore.Available.String(),
		PendingBefore:   e.BalanceBefore.Pending.String(),
		AvailableAfter:  e.BalanceAfter.Available.String(),
		PendingAfter:    e.BalanceAfter.Pending.String(),
		IdempotencyKey:  e.IdempotencyKey,
		ProcessedBy:     e.ProcessedBy,
		CreatedAt:       formatTime(e.CreatedAt),
	}
}

func mapIssuanceToResponse(r *issuance.Record, duplicate bool) IssuanceResponse {
	resp := IssuanceResponse{
		ID:                 r.ID.String(),
		AccountID:          r.AccountID.String(),
		PlanID:             r.PlanID,
		PlanPrice:          r.PlanPrice.String(),
		ReferenceUnitPrice: r.ReferenceUnitPrice.String(),
		BaseTokens:         r.BaseTokens.String(),
		ProrationFactor:    r.ProrationFactor.String(),
		Bonus:              r.Bonus.String(),
		TokensIssued:       r.TokensIssued.String(),
		EffectiveFrom:      formatTime(r.EffectiveFrom),
		PriceStale:         r.PriceStale,
		Metadata:           r.Metadata,
		Duplicate:          duplicate,
		CreatedAt:          formatTime(r.CreatedAt),
	}
	if r.LedgerEntryID != nil {
		resp.LedgerEntryID = r.LedgerEntryID.String()
	}
	return resp
}
