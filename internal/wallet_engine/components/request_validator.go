package components

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

const (
	autoKeyPrefix = "auto:"
	defaultActor  = "system"
)

type RequestValidatorImpl struct {
	logger *slog.Logger
}

func NewRequestValidator(logger *slog.Logger) service.RequestValidator {
	return &RequestValidatorImpl{
		logger: logger,
	}
}

// ValidateMutation checks the amount and the entry and release types of a balance mutation
func (v *RequestValidatorImpl) ValidateMutation(entryType shared.EntryType, req *service.MutationRequest) error {
	if req.AccountID == uuid.Nil {
		return fmt.Errorf("account id is required: %w", shared.ErrInvalidRequest)
	}
	if err := account.ValidateAmount(req.Amount); err != nil {
		return err
	}

	switch entryType {
	case shared.EntryTypeCredit, shared.EntryTypeIssuance, shared.EntryTypeDebit, shared.EntryTypeHold:
	case shared.EntryTypeRelease:
		if !req.ReleaseType.Valid() {
			return account.ErrInvalidReleaseType{ReleaseType: req.ReleaseType}
		}
	default:
		return fmt.Errorf("unknown entry type %q: %w", entryType, shared.ErrInvalidRequest)
	}

	if req.EntryType != "" && req.EntryType != entryType {
		v.logger.Debug("Entry type does not match operation", "requested", req.EntryType, "operation_type", entryType)
		return fmt.Errorf("entry type %q is not allowed for a %s: %w", req.EntryType, entryType, shared.ErrInvalidRequest)
	}
	return nil
}

// ValidateStatusChange requires an account and a reason, and defaults the actor
func (v *RequestValidatorImpl) ValidateStatusChange(req *service.StatusChangeRequest) error {
	if req.AccountID == uuid.Nil {
		return fmt.Errorf("account id is required: %w", shared.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return account.ErrEmptyReason
	}
	if strings.TrimSpace(req.Actor) == "" {
		req.Actor = defaultActor
	}
	return nil
}

// IdempotencyKey returns the trimmed key, or a unique generated key when none was given
func (v *RequestValidatorImpl) IdempotencyKey(key string) string {
	key = strings.TrimSpace(key)
	if key != "" {
		return key
	}
	return autoKeyPrefix + uuid.NewString()
}
