package issuance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/token-wallet-ledger/internal/domain/shared"
)

var one = decimal.NewFromInt(1)

// Calculation is the outcome of converting a plan price into tokens
type Calculation struct {
	PlanPrice       decimal.Decimal
	ReferencePrice  decimal.Decimal
	BaseTokens      decimal.Decimal
	ProratedTokens  decimal.Decimal
	ProrationFactor decimal.Decimal
	Bonus           decimal.Decimal
	Total           decimal.Decimal
}

// Calculate converts planPrice into whole tokens at referencePrice, prorates
// them and adds bonus.
func Calculate(planPrice, referencePrice, bonus, prorationFactor decimal.Decimal) (Calculation, error) {
	if !referencePrice.IsPositive() {
		return Calculation{}, fmt.Errorf("reference price %s must be positive: %w", referencePrice, shared.ErrInvalidPrice)
	}
	if planPrice.IsNegative() {
		return Calculation{}, fmt.Errorf("plan price %s cannot be negative: %w", planPrice, shared.ErrInvalidAmount)
	}
	if bonus.IsNegative() {
		return Calculation{}, fmt.Errorf("bonus %s cannot be negative: %w", bonus, shared.ErrInvalidAmount)
	}
	if prorationFactor.IsNegative() || prorationFactor.GreaterThan(one) {
		return Calculation{}, fmt.Errorf("proration factor %s must be within [0, 1]: %w", prorationFactor, shared.ErrInvalidAmount)
	}
	if !shared.FitsNumeric(referencePrice) {
		return Calculation{}, fmt.Errorf("reference price %s exceeds the stored precision: %w", referencePrice, shared.ErrInvalidPrice)
	}
	inputs := []struct {
		name  string
		value decimal.Decimal
	}{
		{"plan price", planPrice},
		{"bonus", bonus},
		{"proration factor", prorationFactor},
	}
	for _, in := range inputs {
		if !shared.FitsNumeric(in.value) {
			return Calculation{}, fmt.Errorf("%s %s exceeds the stored precision: %w", in.name, in.value, shared.ErrInvalidAmount)
		}
	}

	// QuoRem at precision 0 yields the exact integer quotient, which is the
	// floor for non-negative operands.
	base, _ := planPrice.QuoRem(referencePrice, 0)
	prorated := base.Mul(prorationFactor).Floor()
	total := prorated.Add(bonus)
	if !shared.FitsNumeric(base) || !shared.FitsNumeric(total) {
		return Calculation{}, fmt.Errorf("%s tokens at %s exceeds the stored precision: %w", planPrice, referencePrice, shared.ErrInvalidAmount)
	}

	return Calculation{
		PlanPrice:       planPrice,
		ReferencePrice:  referencePrice,
		BaseTokens:      base,
		ProratedTokens:  prorated,
		ProrationFactor: prorationFactor,
		Bonus:           bonus,
		Total:           total,
	}, nil
}

// IdempotencyKey derives the credit idempotency key for an issuance period
func IdempotencyKey(accountID uuid.UUID, planID string, effectiveFrom time.Time) string {
	sum := sha256.Sum256([]byte(accountID.String() + "|" + planID + "|" + effectiveFrom.UTC().Format(time.RFC3339Nano)))
	return "issuance:" + hex.EncodeToString(sum[:])
}
