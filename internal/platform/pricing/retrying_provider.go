package pricing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy configures the exponential backoff applied to price lookups.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxTries        uint
	Timeout         time.Duration // bounds the whole lookup, retries included
}

// RetryingProvider retries transient feed failures with exponential backoff.
// Missing or malformed quotes and context cancellation are not retried.
type RetryingProvider struct {
	logger *slog.Logger
	next   Provider
	policy RetryPolicy
}

func NewRetryingProvider(logger *slog.Logger, next Provider, policy RetryPolicy) *RetryingProvider {
	if policy.MaxTries == 0 {
		policy.MaxTries = 1
	}
	return &RetryingProvider{
		logger: logger,
		next:   next,
		policy: policy,
	}
}

func (p *RetryingProvider) GetReferencePrice(ctx context.Context, symbol string) (Quote, error) {
	if p.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.policy.Timeout)
		defer cancel()
	}

	b := backoff.NewExponentialBackOff()
	if p.policy.InitialInterval > 0 {
		b.InitialInterval = p.policy.InitialInterval
	}
	if p.policy.MaxInterval > 0 {
		b.MaxInterval = p.policy.MaxInterval
	}

	attempt := 0
	operation := func() (Quote, error) {
		attempt++
		quote, err := p.next.GetReferencePrice(ctx, symbol)
		if err == nil {
			return quote, nil
		}
		if isPermanent(err) {
			return Quote{}, backoff.Permanent(err)
		}
		return Quote{}, err
	}

	quote, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.policy.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Warn("Reference price lookup failed, retrying",
				"symbol", symbol,
				"attempt", attempt,
				"retry_in", next,
				"error", err)
		}),
	)
	if err != nil {
		return Quote{}, err
	}
	return quote, nil
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrPriceNotFound) ||
		errors.Is(err, ErrMalformedQuote) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
