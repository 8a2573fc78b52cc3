// Package pricing reads the reference unit price used to convert plan prices into
// token quantities.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrPriceNotFound is returned when the feed holds no quote for a symbol.
var ErrPriceNotFound = errors.New("reference price not found")

// ErrMalformedQuote is returned when a stored quote cannot be parsed.
var ErrMalformedQuote = errors.New("malformed reference price quote")

// Quote is a time-weighted average unit price as published by the oracle job.
type Quote struct {
	Symbol  string
	Price   decimal.Decimal
	IsStale bool
	AsOf    time.Time
}

// Provider supplies the current reference price for a symbol.
type Provider interface {
	GetReferencePrice(ctx context.Context, symbol string) (Quote, error)
}
