package issuance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/token-wallet-ledger/internal/domain/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		planPrice string
		refPrice  string
		bonus     string
		factor    string
		base      string
		total     string
	}{
		{name: "whole division", planPrice: "100", refPrice: "0.25", bonus: "0", factor: "1", base: "400", total: "400"},
		{name: "floors fractional tokens", planPrice: "10", refPrice: "3", bonus: "0", factor: "1", base: "3", total: "3"},
		{name: "prorated half month", planPrice: "100", refPrice: "0.3", bonus: "0", factor: "0.5", base: "333", total: "166"},
		{name: "bonus added after proration", planPrice: "49.99", refPrice: "0.5", bonus: "25", factor: "0.1", base: "99", total: "34"},
		{name: "free tier", planPrice: "0", refPrice: "0.25", bonus: "0", factor: "1", base: "0", total: "0"},
		{name: "free tier with bonus", planPrice: "0", refPrice: "0.25", bonus: "10", factor: "1", base: "0", total: "10"},
		{name: "zero proration", planPrice: "100", refPrice: "1", bonus: "0", factor: "0", base: "100", total: "0"},
		{name: "repeating quotient", planPrice: "1", refPrice: "0.0000003", bonus: "0", factor: "1", base: "3333333", total: "3333333"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := Calculate(dec(tt.planPrice), dec(tt.refPrice), dec(tt.bonus), dec(tt.factor))
			require.NoError(t, err)
			assert.True(t, calc.BaseTokens.Equal(dec(tt.base)), "base: got %s want %s", calc.BaseTokens, tt.base)
			assert.True(t, calc.Total.Equal(dec(tt.total)), "total: got %s want %s", calc.Total, tt.total)
		})
	}
}

func TestCalculate_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		planPrice string
		refPrice  string
		bonus     string
		factor    string
		expected  error
	}{
		{name: "zero reference price", planPrice: "100", refPrice: "0", bonus: "0", factor: "1", expected: shared.ErrInvalidPrice},
		{name: "negative reference price", planPrice: "100", refPrice: "-1", bonus: "0", factor: "1", expected: shared.ErrInvalidPrice},
		{name: "negative plan price", planPrice: "-5", refPrice: "1", bonus: "0", factor: "1", expected: shared.ErrInvalidAmount},
		{name: "negative bonus", planPrice: "5", refPrice: "1", bonus: "-1", factor: "1", expected: shared.ErrInvalidAmount},
		{name: "factor above one", planPrice: "5", refPrice: "1", bonus: "0", factor: "1.01", expected: shared.ErrInvalidAmount},
		{name: "negative factor", planPrice: "5", refPrice: "1", bonus: "0", factor: "-0.5", expected: shared.ErrInvalidAmount},
		{name: "reference price below stored precision", planPrice: "100", refPrice: "0.0000000000000000001", bonus: "0", factor: "1", expected: shared.ErrInvalidPrice},
		{name: "reference price with 19 decimals", planPrice: "100", refPrice: "0.2500000000000000001", bonus: "0", factor: "1", expected: shared.ErrInvalidPrice},
		{name: "plan price with 19 decimals", planPrice: "9.9999999999999999999", refPrice: "1", bonus: "0", factor: "1", expected: shared.ErrInvalidAmount},
		{name: "bonus with 19 decimals", planPrice: "5", refPrice: "1", bonus: "0.0000000000000000001", factor: "1", expected: shared.ErrInvalidAmount},
		{name: "factor with 19 decimals", planPrice: "5", refPrice: "1", bonus: "0", factor: "0.5000000000000000001", expected: shared.ErrInvalidAmount},
		{name: "token count overflows", planPrice: "10000000000", refPrice: "0.000000000000000001", bonus: "0", factor: "1", expected: shared.ErrInvalidAmount},
		{name: "bonus overflows", planPrice: "5", refPrice: "1", bonus: "100000000000000000000", factor: "1", expected: shared.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(dec(tt.planPrice), dec(tt.refPrice), dec(tt.bonus), dec(tt.factor))
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestCalculate_FinestStoredPrecision(t *testing.T) {
	calc, err := Calculate(dec("1"), dec("0.000000000000000001"), dec("0"), dec("1.000000000000000000000"))
	require.NoError(t, err)
	assert.True(t, calc.Total.Equal(dec("1000000000000000000")))
}

func TestIdempotencyKey(t *testing.T) {
	accountID := uuid.New()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	key := IdempotencyKey(accountID, "pro-monthly", from)
	assert.Contains(t, key, "issuance:")
	assert.Len(t, key, len("issuance:")+64)

	sameInstantOtherZone := from.In(time.FixedZone("CET", 3600))
	assert.Equal(t, key, IdempotencyKey(accountID, "pro-monthly", sameInstantOtherZone))
	assert.NotEqual(t, key, IdempotencyKey(accountID, "pro-yearly", from))
	assert.NotEqual(t, key, IdempotencyKey(accountID, "pro-monthly", from.AddDate(0, 1, 0)))
	assert.NotEqual(t, key, IdempotencyKey(uuid.New(), "pro-monthly", from))
}
