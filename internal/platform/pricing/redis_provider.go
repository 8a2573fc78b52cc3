package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	defaultKeyPrefix = "price:"

	fieldPrice = "price"
	fieldAsOf  = "as_of"
	fieldStale = "stale"
)

// RedisProvider reads quotes from hashes keyed <prefix><SYMBOL>.
type RedisProvider struct {
	logger *slog.Logger
	client redis.Cmdable
	prefix string
	maxAge time.Duration
	now    func() time.Time
}

func NewRedisProvider(logger *slog.Logger, client redis.Cmdable, prefix string, maxAge time.Duration) *RedisProvider {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisProvider{
		logger: logger,
		client: client,
		prefix: prefix,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (p *RedisProvider) GetReferencePrice(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	key := p.prefix + symbol

	fields, err := p.client.HGetAll(ctx, key).Result()
	if err != nil {
		p.logger.Error("Failed to read reference price", "symbol", symbol, "error", err)
		return Quote{}, fmt.Errorf("failed to read reference price for %s: %w", symbol, err)
	}
	if len(fields) == 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrPriceNotFound, symbol)
	}

	rawPrice, ok := fields[fieldPrice]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s has no %s field", ErrMalformedQuote, symbol, fieldPrice)
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %s price %q: %v", ErrMalformedQuote, symbol, rawPrice, err)
	}

	quote := Quote{
		Symbol: symbol,
		Price:  price,
	}

	if rawAsOf, ok := fields[fieldAsOf]; ok && rawAsOf != "" {
		asOf, err := time.Parse(time.RFC3339, rawAsOf)
		if err != nil {
			return Quote{}, fmt.Errorf("%w: %s as_of %q: %v", ErrMalformedQuote, symbol, rawAsOf, err)
		}
		quote.AsOf = asOf.UTC()
	}

	switch {
	case quote.AsOf.IsZero():
		// An undated quote cannot be proven fresh.
		quote.IsStale = true
	case p.maxAge > 0 && p.now().Sub(quote.AsOf) > p.maxAge:
		quote.IsStale = true
	}
	if flag := strings.ToLower(fields[fieldStale]); flag == "1" || flag == "true" {
		quote.IsStale = true
	}

	return quote, nil
}
