package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/issuance"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/domain/uow"
	"github.com/token-wallet-ledger/internal/platform/pricing"
)

const (
	priceLookupOK          = "ok"
	priceLookupStale       = "stale"
	priceLookupUnavailable = "unavailable"
)

// IssueForPlan credits the tokens a plan purchase is worth at referencePrice.
// Each (account, plan, effectiveFrom) period is issued at most once.
func (e *Engine) IssueForPlan(ctx context.Context, req IssuanceRequest) (*IssuanceResult, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	logger := e.loggerFor(opIssueForPlan, req.CorrelationID).With(
		"account_id", req.AccountID.String(),
		"plan_id", req.PlanID,
	)

	result, err := e.issue(ctx, logger, req, nil)
	if err != nil {
		return nil, e.finish(logger, opIssueForPlan, start, false, err)
	}

	e.finish(logger, opIssueForPlan, start, result.Duplicate, nil)
	return result, nil
}

// IssueForPlanAtMarket prices the issuance from the reference price feed.
// A stale quote is used but flagged on the record.
func (e *Engine) IssueForPlanAtMarket(ctx context.Context, req MarketIssuanceRequest) (*IssuanceResult, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		symbol = e.opts.DefaultSymbol
	}
	logger := e.loggerFor(opIssueAtMarket, req.CorrelationID).With(
		"account_id", req.AccountID.String(),
		"plan_id", req.PlanID,
		"symbol", symbol,
	)

	quote, err := e.referencePrice(ctx, symbol)
	if err != nil {
		return nil, e.finish(logger, opIssueAtMarket, start, false, err)
	}
	if quote.IsStale {
		logger.Warn("Issuing against a stale reference price", "price", quote.Price.String(), "as_of", quote.AsOf)
	}

	result, err := e.issue(ctx, logger, IssuanceRequest{
		AccountID:       req.AccountID,
		PlanID:          req.PlanID,
		PlanPrice:       req.PlanPrice,
		ReferencePrice:  quote.Price,
		EffectiveFrom:   req.EffectiveFrom,
		Bonus:           req.Bonus,
		ProrationFactor: req.ProrationFactor,
		ProcessedBy:     req.ProcessedBy,
		CorrelationID:   req.CorrelationID,
	}, &quote)
	if err != nil {
		return nil, e.finish(logger, opIssueAtMarket, start, false, err)
	}

	e.finish(logger, opIssueAtMarket, start, result.Duplicate, nil)
	return result, nil
}

func (e *Engine) referencePrice(ctx context.Context, symbol string) (pricing.Quote, error) {
	if e.prices == nil {
		e.metrics.incPriceLookup(priceLookupUnavailable)
		return pricing.Quote{}, fmt.Errorf("no reference price provider configured: %w", shared.ErrPriceUnavailable)
	}

	quote, err := e.prices.GetReferencePrice(ctx, symbol)
	if err != nil {
		e.metrics.incPriceLookup(priceLookupUnavailable)
		return pricing.Quote{}, fmt.Errorf("%w: %s: %w", shared.ErrPriceUnavailable, symbol, err)
	}
	// Quotes finer than the stored precision are used at 18 places
	quote.Price = quote.Price.Round(shared.NumericScale)
	if !quote.Price.IsPositive() || !shared.FitsNumeric(quote.Price) {
		e.metrics.incPriceLookup(priceLookupUnavailable)
		return pricing.Quote{}, fmt.Errorf("%w: %s quoted at %s", shared.ErrPriceUnavailable, symbol, quote.Price)
	}

	if quote.IsStale {
		e.metrics.incPriceLookup(priceLookupStale)
	} else {
		e.metrics.incPriceLookup(priceLookupOK)
	}
	return quote, nil
}

// issue runs the three issuance steps: period lookup, credit, record insert.
// The credit key is derived from the period, so a retry after a failure
// between the last two steps replays the credit instead of repeating it.
func (e *Engine) issue(ctx context.Context, logger *slog.Logger, req IssuanceRequest, quote *pricing.Quote) (*IssuanceResult, error) {
	if req.AccountID == uuid.Nil {
		return nil, fmt.Errorf("account id is required: %w", shared.ErrInvalidRequest)
	}
	planID := strings.TrimSpace(req.PlanID)
	if planID == "" {
		return nil, fmt.Errorf("plan id is required: %w", shared.ErrInvalidRequest)
	}
	if req.EffectiveFrom.IsZero() {
		return nil, fmt.Errorf("effective from is required: %w", shared.ErrInvalidRequest)
	}
	effectiveFrom := req.EffectiveFrom.UTC()

	calc, err := issuance.Calculate(req.PlanPrice, req.ReferencePrice, req.Bonus, req.ProrationFactor)
	if err != nil {
		return nil, err
	}

	existing, err := e.findIssuance(ctx, req.AccountID, planID, effectiveFrom)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Info("Issuance already recorded for period", "record_id", existing.ID.String())
		return &IssuanceResult{Record: existing, Duplicate: true}, nil
	}

	record := issuance.NewRecord(req.AccountID, planID, effectiveFrom, calc, e.now())
	if quote != nil {
		record.PriceStale = quote.IsStale
		record.Metadata["price_symbol"] = quote.Symbol
		if !quote.AsOf.IsZero() {
			record.Metadata["price_as_of"] = quote.AsOf.UTC().Format(time.RFC3339)
		}
	}

	if calc.Total.IsPositive() {
		credited, err := e.mutate(ctx, logger, shared.EntryTypeIssuance, MutationRequest{
			AccountID: req.AccountID,
			Amount:    calc.Total,
			Reference: "plan:" + planID,
			Meta: map[string]any{
				"plan_id":              planID,
				"effective_from":       effectiveFrom.Format(time.RFC3339Nano),
				"reference_unit_price": calc.ReferencePrice.String(),
				"base_tokens":          calc.BaseTokens.String(),
			},
			IdempotencyKey: issuance.IdempotencyKey(req.AccountID, planID, effectiveFrom),
			ProcessedBy:    req.ProcessedBy,
			CorrelationID:  req.CorrelationID,
		}, func(b *account.Balance) error {
			return b.Credit(calc.Total)
		})
		if err != nil {
			return nil, err
		}
		entryID := credited.Entry.ID
		record.LedgerEntryID = &entryID
	}

	err = e.unitOfWork.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		if record.LedgerEntryID == nil {
			// Nothing was credited, so the account has not been checked yet.
			acc, err := repos.Accounts().GetByID(ctx, req.AccountID)
			if err != nil {
				return err
			}
			if err := acc.EnsureActive(); err != nil {
				return err
			}
		}
		return repos.Issuances().Create(ctx, record)
	})

	var duplicate issuance.ErrDuplicateIssuance
	if errors.As(err, &duplicate) {
		winner, findErr := e.findIssuance(ctx, req.AccountID, planID, effectiveFrom)
		if findErr != nil {
			return nil, findErr
		}
		if winner == nil {
			return nil, fmt.Errorf("issuance for plan %s reported duplicate but was not found: %w", planID, err)
		}
		logger.Info("Issuance recorded concurrently, returning stored record", "record_id", winner.ID.String())
		return &IssuanceResult{Record: winner, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	e.metrics.addTokensIssued(record.TokensIssued)
	logger.Info("Tokens issued",
		"record_id", record.ID.String(),
		"tokens", record.TokensIssued.String(),
		"reference_unit_price", record.ReferenceUnitPrice.String(),
		"price_stale", record.PriceStale,
	)
	return &IssuanceResult{Record: record}, nil
}

// findIssuance returns the record for the period, or nil when there is none
func (e *Engine) findIssuance(ctx context.Context, accountID uuid.UUID, planID string, effectiveFrom time.Time) (*issuance.Record, error) {
	var record *issuance.Record
	err := e.unitOfWork.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		found, err := repos.Issuances().GetByPeriod(ctx, accountID, planID, effectiveFrom)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}
		record = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
