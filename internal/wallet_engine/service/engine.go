package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/domain/uow"
	"github.com/token-wallet-ledger/internal/platform/pricing"
)

const (
	opCreateAccount = "create_account"
	opGetAccount    = "get_account"
	opGetBalance    = "get_balance"
	opCredit        = "credit"
	opDebit         = "debit"
	opHold          = "hold"
	opRelease       = "release"
	opFreeze        = "freeze"
	opSuspend       = "suspend"
	opReactivate    = "reactivate"
	opIssueForPlan  = "issue_for_plan"
	opIssueAtMarket = "issue_for_plan_at_market"

	accountCreationReference = "account_creation"
)

// Options tunes engine behaviour
type Options struct {
	// OperationTimeout bounds an operation whose context has no deadline
	OperationTimeout time.Duration
	// ProcessedBy is recorded on entries whose request names no processor
	ProcessedBy string
	// DefaultSymbol prices market issuances that name no symbol
	DefaultSymbol string
}

// Engine applies wallet operations, each inside one unit of work.
type Engine struct {
	unitOfWork     uow.UnitOfWork
	validator      RequestValidator
	accountManager AccountManager
	entryRecorder  EntryRecorder
	prices         pricing.Provider
	metrics        *Metrics
	logger         *slog.Logger
	opts           Options
	now            func() time.Time
}

var _ WalletEngine = (*Engine)(nil)

func NewEngine(
	unitOfWork uow.UnitOfWork,
	validator RequestValidator,
	accountManager AccountManager,
	entryRecorder EntryRecorder,
	prices pricing.Provider,
	metrics *Metrics,
	logger *slog.Logger,
	opts Options,
) *Engine {
	return &Engine{
		unitOfWork:     unitOfWork,
		validator:      validator,
		accountManager: accountManager,
		entryRecorder:  entryRecorder,
		prices:         prices,
		metrics:        metrics,
		logger:         logger,
		opts:           opts,
		now:            utcNow,
	}
}

// utcNow matches the microsecond precision Postgres stores, so a first result
// and its replays carry the same timestamps.
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// CreateAccount opens an active wallet with a zero balance for the owner.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*AccountResult, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	logger := e.loggerFor(opCreateAccount, req.CorrelationID).With("owner_id", req.OwnerID)

	now := e.now()
	acc, err := account.NewAccount(req.OwnerID, req.CreatedBy, now)
	if err != nil {
		return nil, e.finish(logger, opCreateAccount, start, false, err)
	}
	balance := account.NewBalance(acc.ID, now)

	err = e.unitOfWork.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		existing, err := repos.Accounts().GetByOwnerID(ctx, acc.OwnerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return account.ErrOwnerAlreadyExists{OwnerID: acc.OwnerID}
		}
		if err := repos.Accounts().Create(ctx, acc); err != nil {
			return err
		}
		if err := repos.Accounts().CreateBalance(ctx, balance); err != nil {
			return err
		}

		zero := balance.Snapshot()
		entry := ledger.NewEntry(acc.ID, shared.EntryTypeCredit, decimal.Zero, zero, zero,
			accountCreationReference+":"+acc.ID.String(), now)
		entry.Reference = accountCreationReference
		entry.ProcessedBy = e.processedBy(req.CreatedBy)
		return e.entryRecorder.Record(ctx, repos, entry)
	})
	if err != nil {
		return nil, e.finish(logger, opCreateAccount, start, false, err)
	}

	logger.Info("Account created", "account_id", acc.ID.String())
	e.finish(logger, opCreateAccount, start, false, nil)
	return &AccountResult{Account: acc, Balance: balanceViewOf(balance)}, nil
}

// GetAccount returns the account regardless of its status
func (e *Engine) GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	logger := e.loggerFor(opGetAccount, "").With("account_id", accountID.String())

	var acc *account.Account
	err := e.unitOfWork.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		acc, err = repos.Accounts().GetByID(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, e.finish(logger, opGetAccount, start, false, err)
	}

	e.finish(logger, opGetAccount, start, false, nil)
	return acc, nil
}

// GetBalance reads the balance projection. Inactive accounts stay readable.
func (e *Engine) GetBalance(ctx context.Context, accountID uuid.UUID) (*BalanceView, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	logger := e.loggerFor(opGetBalance, "").With("account_id", accountID.String())

	var view BalanceView
	err := e.unitOfWork.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		acc, err := repos.Accounts().GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		if !acc.IsActive() {
			logger.Warn("Balance read on inactive account", "status", acc.Status)
		}

		balance, err := repos.Accounts().GetBalance(ctx, accountID)
		if err != nil {
			return err
		}
		view = balanceViewOf(balance)
		return nil
	})
	if err != nil {
		return nil, e.finish(logger, opGetBalance, start, false, err)
	}

	e.finish(logger, opGetBalance, start, false, nil)
	return &view, nil
}

// Credit adds funds to available. The entry type is credit unless the caller asks for issuance.
func (e *Engine) Credit(ctx context.Context, req MutationRequest) (*MutationResult, error) {
	entryType := shared.EntryTypeCredit
	if req.EntryType == shared.EntryTypeIssuance {
		entryType = shared.EntryTypeIssuance
	}
	return e.runMutation(ctx, opCredit, entryType, req, func(b *account.Balance) error {
		return b.Credit(req.Amount)
	})
}

// Debit removes funds from available
func (e *Engine) Debit(ctx context.Context, req MutationRequest) (*MutationResult, error) {
	return e.runMutation(ctx, opDebit, shared.EntryTypeDebit, req, func(b *account.Balance) error {
		return b.Debit(req.Amount)
	})
}

// Hold moves funds from available into pending
func (e *Engine) Hold(ctx context.Context, req MutationRequest) (*MutationResult, error) {
	return e.runMutation(ctx, opHold, shared.EntryTypeHold, req, func(b *account.Balance) error {
		return b.Hold(req.Amount)
	})
}

// Release takes held funds out of pending, returning them to available on restore
func (e *Engine) Release(ctx context.Context, req MutationRequest) (*MutationResult, error) {
	return e.runMutation(ctx, opRelease, shared.EntryTypeRelease, req, func(b *account.Balance) error {
		return b.Release(req.Amount, req.ReleaseType)
	})
}

func (e *Engine) runMutation(
	ctx context.Context,
	op string,
	entryType shared.EntryType,
	req MutationRequest,
	apply func(b *account.Balance) error,
) (*MutationResult, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	logger := e.loggerFor(op, req.CorrelationID).With("account_id", req.AccountID.String())

	if err := e.validator.ValidateMutation(entryType, &req); err != nil {
		return nil, e.finish(logger, op, start, false, err)
	}

	result, err := e.mutate(ctx, logger, entryType, req, apply)
	if err != nil {
		return nil, e.finish(logger, op, start, false, err)
	}

	e.finish(logger, op, start, result.Replayed, nil)
	return result, nil
}

// mutate applies one balance change and its ledger entry in a single unit of
// work. A key that is already in the ledger returns the stored result.
func (e *Engine) mutate(
	ctx context.Context,
	logger *slog.Logger,
	entryType shared.EntryType,
	req MutationRequest,
	apply func(b *account.Balance) error,
) (*MutationResult, error) {
	key := e.validator.IdempotencyKey(req.IdempotencyKey)

	var result *MutationResult
	err := e.unitOfWork.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		prior, err := repos.Ledger().GetByIdempotencyKey(ctx, key)
		if err == nil {
			if err := checkOwner(key, req, prior); err != nil {
				return err
			}
			e.warnOnMismatch(logger, entryType, req, prior)
			result = resultFromEntry(prior)
			result.Replayed = true
			return nil
		}
		if !errors.Is(err, ledger.ErrEntryNotFound{}) {
			return err
		}

		acc, balance, err := e.accountManager.LockActive(ctx, repos, req.AccountID)
		if err != nil {
			return err
		}

		before := balance.Snapshot()
		expectedVersion := balance.Version
		if err := apply(balance); err != nil {
			return err
		}
		now := e.now()
		balance.UpdatedAt = now

		entry := ledger.NewEntry(acc.ID, entryType, req.Amount, before, balance.Snapshot(), key, now)
		if entryType == shared.EntryTypeRelease {
			entry.Subtype = string(req.ReleaseType)
		}
		entry.Reference = req.Reference
		entry.Meta = req.Meta
		entry.ProcessedBy = e.processedBy(req.ProcessedBy)

		if err := e.entryRecorder.Record(ctx, repos, entry); err != nil {
			return err
		}
		if err := e.accountManager.SaveMutation(ctx, repos, acc, balance, expectedVersion, now); err != nil {
			return err
		}

		result = resultFromEntry(entry)
		return nil
	})

	if errors.Is(err, shared.ErrDuplicateIdempotencyKey) {
		// A concurrent call with the same key committed first.
		logger.Info("Idempotency key taken concurrently, returning stored result", "idempotency_key", key)
		return e.loadPrior(ctx, logger, entryType, req, key)
	}
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		logger.Info("Replayed idempotent request", "idempotency_key", key, "entry_id", result.Entry.ID.String())
	}
	return result, nil
}

func (e *Engine) loadPrior(ctx context.Context, logger *slog.Logger, entryType shared.EntryType, req MutationRequest, key string) (*MutationResult, error) {
	var prior *ledger.Entry
	err := e.unitOfWork.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		prior, err = repos.Ledger().GetByIdempotencyKey(ctx, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load entry for idempotency key %s: %w", key, err)
	}
	if err := checkOwner(key, req, prior); err != nil {
		return nil, err
	}

	e.warnOnMismatch(logger, entryType, req, prior)
	result := resultFromEntry(prior)
	result.Replayed = true
	return result, nil
}

// checkOwner refuses a key that was first used on another account
func checkOwner(key string, req MutationRequest, prior *ledger.Entry) error {
	if prior.AccountID == req.AccountID {
		return nil
	}
	return fmt.Errorf("idempotency key %s is already used by another account: %w", key, shared.ErrInvalidRequest)
}

func (e *Engine) warnOnMismatch(logger *slog.Logger, entryType shared.EntryType, req MutationRequest, prior *ledger.Entry) {
	if prior.AccountID == req.AccountID && prior.Amount.Equal(req.Amount) && prior.Type == entryType {
		return
	}
	logger.Warn("Idempotency key reused with different parameters",
		"idempotency_key", prior.IdempotencyKey,
		"stored_account_id", prior.AccountID.String(),
		"stored_type", prior.Type,
		"stored_amount", prior.Amount.String(),
		"requested_type", entryType,
		"requested_amount", req.Amount.String(),
	)
}

// Freeze moves an active account to frozen
func (e *Engine) Freeze(ctx context.Context, req StatusChangeRequest) (*account.Account, error) {
	return e.changeStatus(ctx, opFreeze, req, func(acc *account.Account, req StatusChangeRequest, now time.Time) error {
		return acc.Freeze(req.Reason, req.Actor, now)
	})
}

// Suspend moves an active account to suspended
func (e *Engine) Suspend(ctx context.Context, req StatusChangeRequest) (*account.Account, error) {
	return e.changeStatus(ctx, opSuspend, req, func(acc *account.Account, req StatusChangeRequest, now time.Time) error {
		return acc.Suspend(req.Reason, req.Actor, now)
	})
}

// Reactivate returns a frozen or suspended account to active
func (e *Engine) Reactivate(ctx context.Context, req StatusChangeRequest) (*account.Account, error) {
	return e.changeStatus(ctx, opReactivate, req, func(acc *account.Account, req StatusChangeRequest, now time.Time) error {
		return acc.Reactivate(req.Reason, req.Actor, now)
	})
}

func (e *Engine) changeStatus(
	ctx context.Context,
	op string,
	req StatusChangeRequest,
	transition func(acc *account.Account, req StatusChangeRequest, now time.Time) error,
) (*account.Account, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	logger := e.loggerFor(op, req.CorrelationID).With("account_id", req.AccountID.String())

	if err := e.validator.ValidateStatusChange(&req); err != nil {
		return nil, e.finish(logger, op, start, false, err)
	}

	var updated *account.Account
	err := e.unitOfWork.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		acc, _, err := repos.Accounts().LockForUpdate(ctx, req.AccountID)
		if err != nil {
			return err
		}

		previous := acc.Status
		if err := transition(acc, req, e.now()); err != nil {
			return err
		}
		if err := repos.Accounts().UpdateStatus(ctx, acc); err != nil {
			return err
		}
		if err := e.entryRecorder.RecordStatusChange(ctx, repos, acc, previous); err != nil {
			return err
		}

		updated = acc
		return nil
	})
	if err != nil {
		return nil, e.finish(logger, op, start, false, err)
	}

	logger.Info("Account status changed", "status", updated.Status, "actor", req.Actor, "reason", req.Reason)
	e.finish(logger, op, start, false, nil)
	return updated, nil
}

// finish records the outcome of an operation and returns err unchanged.
// Rule violations are logged at WARN, everything else at ERROR.
func (e *Engine) finish(logger *slog.Logger, op string, start time.Time, replayed bool, err error) error {
	elapsed := time.Since(start)
	switch {
	case err == nil && replayed:
		e.metrics.observe(op, OutcomeReplayed, "", elapsed)
	case err == nil:
		e.metrics.observe(op, OutcomeSuccess, "", elapsed)
	case shared.IsBusinessError(err):
		logger.Warn("Operation rejected", "code", shared.ErrorCode(err), "error", err)
		e.metrics.observe(op, OutcomeRejected, shared.ErrorCode(err), elapsed)
	default:
		logger.Error("Operation failed", "error", err)
		e.metrics.observe(op, OutcomeFailed, shared.ErrorCode(err), elapsed)
	}
	return err
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || e.opts.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.opts.OperationTimeout)
}

func (e *Engine) loggerFor(op, correlationID string) *slog.Logger {
	logger := e.logger.With("operation", op)
	if correlationID != "" {
		logger = logger.With("correlation_id", correlationID)
	}
	return logger
}

func (e *Engine) processedBy(requested string) string {
	if requested != "" {
		return requested
	}
	return e.opts.ProcessedBy
}
