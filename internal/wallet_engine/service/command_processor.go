package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/token-wallet-ledger/internal/domain/shared"
)

// EngineCommandProcessor dispatches wallet commands to the engine
type EngineCommandProcessor struct {
	engine WalletEngine
	logger *slog.Logger
}

func NewCommandProcessor(engine WalletEngine, logger *slog.Logger) *EngineCommandProcessor {
	return &EngineCommandProcessor{
		engine: engine,
		logger: logger,
	}
}

// ProcessCommand runs cmd against the engine and returns the engine error as is,
// so callers can tell rule violations from infrastructure failures.
func (p *EngineCommandProcessor) ProcessCommand(ctx context.Context, cmd *shared.WalletCommand) error {
	logger := p.logger.With("command_id", cmd.CommandID.String(), "operation", cmd.Operation)
	if cmd.CorrelationID != "" {
		logger = logger.With("correlation_id", cmd.CorrelationID)
	}

	var err error
	switch cmd.Operation {
	case shared.CommandCreateAccount:
		_, err = p.engine.CreateAccount(ctx, CreateAccountRequest{
			OwnerID:       cmd.OwnerID,
			CreatedBy:     cmd.Actor,
			CorrelationID: cmd.CorrelationID,
		})
		if errors.Is(err, shared.ErrAlreadyExists) {
			// Redelivery of a command that already committed.
			logger.Info("Account already exists for owner, skipping", "owner_id", cmd.OwnerID)
			return nil
		}
	case shared.CommandCredit:
		_, err = p.engine.Credit(ctx, mutationRequestOf(cmd))
	case shared.CommandDebit:
		_, err = p.engine.Debit(ctx, mutationRequestOf(cmd))
	case shared.CommandHold:
		_, err = p.engine.Hold(ctx, mutationRequestOf(cmd))
	case shared.CommandRelease:
		_, err = p.engine.Release(ctx, mutationRequestOf(cmd))
	case shared.CommandFreeze:
		_, err = p.engine.Freeze(ctx, statusChangeRequestOf(cmd))
	case shared.CommandSuspend:
		_, err = p.engine.Suspend(ctx, statusChangeRequestOf(cmd))
	case shared.CommandReactivate:
		_, err = p.engine.Reactivate(ctx, statusChangeRequestOf(cmd))
	case shared.CommandIssueForPlan:
		err = p.issue(ctx, cmd)
	default:
		err = fmt.Errorf("unknown command operation %q: %w", cmd.Operation, shared.ErrInvalidRequest)
	}

	if err != nil {
		return err
	}
	logger.Debug("Command processed", "account_id", cmd.AccountID.String())
	return nil
}

func (p *EngineCommandProcessor) issue(ctx context.Context, cmd *shared.WalletCommand) error {
	if cmd.Issuance == nil {
		return fmt.Errorf("issue_for_plan command without issuance parameters: %w", shared.ErrInvalidRequest)
	}
	params := cmd.Issuance
	factor := decimal.NewFromInt(1)
	if params.ProrationFactor != nil {
		factor = *params.ProrationFactor
	}

	if params.ReferencePrice != nil {
		_, err := p.engine.IssueForPlan(ctx, IssuanceRequest{
			AccountID:       cmd.AccountID,
			PlanID:          params.PlanID,
			PlanPrice:       params.PlanPrice,
			ReferencePrice:  *params.ReferencePrice,
			EffectiveFrom:   params.EffectiveFrom,
			Bonus:           params.Bonus,
			ProrationFactor: factor,
			ProcessedBy:     cmd.Actor,
			CorrelationID:   cmd.CorrelationID,
		})
		return err
	}

	_, err := p.engine.IssueForPlanAtMarket(ctx, MarketIssuanceRequest{
		AccountID:       cmd.AccountID,
		PlanID:          params.PlanID,
		PlanPrice:       params.PlanPrice,
		Symbol:          params.Symbol,
		EffectiveFrom:   params.EffectiveFrom,
		Bonus:           params.Bonus,
		ProrationFactor: factor,
		ProcessedBy:     cmd.Actor,
		CorrelationID:   cmd.CorrelationID,
	})
	return err
}

// mutationRequestOf falls back to the command id as idempotency key, so a
// redelivered command is applied once.
func mutationRequestOf(cmd *shared.WalletCommand) MutationRequest {
	key := cmd.IdempotencyKey
	if key == "" && cmd.CommandID != uuid.Nil {
		key = "command:" + cmd.CommandID.String()
	}
	return MutationRequest{
		AccountID:      cmd.AccountID,
		Amount:         cmd.Amount,
		EntryType:      cmd.EntryType,
		ReleaseType:    cmd.ReleaseType,
		Reference:      cmd.Reference,
		Meta:           cmd.Meta,
		IdempotencyKey: key,
		ProcessedBy:    cmd.Actor,
		CorrelationID:  cmd.CorrelationID,
	}
}

func statusChangeRequestOf(cmd *shared.WalletCommand) StatusChangeRequest {
	return StatusChangeRequest{
		AccountID:     cmd.AccountID,
		Reason:        cmd.Reason,
		Actor:         cmd.Actor,
		CorrelationID: cmd.CorrelationID,
	}
}
