package issuance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Record documents a token issuance for one account, plan and effective period
type Record struct {
	ID                 uuid.UUID       `json:"id"`
	AccountID          uuid.UUID       `json:"account_id"`
	PlanID             string          `json:"plan_id"`
	PlanPrice          decimal.Decimal `json:"plan_price"`
	ReferenceUnitPrice decimal.Decimal `json:"reference_unit_price"`
	BaseTokens         decimal.Decimal `json:"base_tokens"`
	ProrationFactor    decimal.Decimal `json:"proration_factor"`
	Bonus              decimal.Decimal `json:"bonus"`
	TokensIssued       decimal.Decimal `json:"tokens_issued"`
	EffectiveFrom      time.Time       `json:"effective_from"`
	LedgerEntryID      *uuid.UUID      `json:"ledger_entry_id,omitempty"` // Nil when nothing was credited
	PriceStale         bool            `json:"price_stale"`
	Metadata           map[string]any  `json:"metadata,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// NewRecord builds the record for a finished calculation
func NewRecord(accountID uuid.UUID, planID string, effectiveFrom time.Time, calc Calculation, now time.Time) *Record {
	return &Record{
		ID:                 uuid.New(),
		AccountID:          accountID,
		PlanID:             planID,
		PlanPrice:          calc.PlanPrice,
		ReferenceUnitPrice: calc.ReferencePrice,
		BaseTokens:         calc.BaseTokens,
		ProrationFactor:    calc.ProrationFactor,
		Bonus:              calc.Bonus,
		TokensIssued:       calc.Total,
		EffectiveFrom:      effectiveFrom.UTC(),
		Metadata:           map[string]any{},
		CreatedAt:          now,
	}
}
