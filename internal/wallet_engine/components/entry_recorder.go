package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/outbox"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/domain/uow"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

type EntryRecorderImpl struct {
	logger *slog.Logger
}

func NewEntryRecorder(logger *slog.Logger) service.EntryRecorder {
	return &EntryRecorderImpl{
		logger: logger,
	}
}

// Record appends entry to the ledger and enqueues it for publishing.
// A taken idempotency key is returned unwrapped so the engine can replay.
func (r *EntryRecorderImpl) Record(ctx context.Context, repos uow.Repositories, entry *ledger.Entry) error {
	if err := repos.Ledger().Append(ctx, entry); err != nil {
		return err
	}

	message, err := outbox.NewEntryMessage(entry)
	if err != nil {
		r.logger.Error("Failed to create outbox message (marshal payload)",
			"entry_id", entry.ID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message payload for entry %s: %w", entry.ID, err)
	}

	if err := repos.Outbox().Create(ctx, message); err != nil {
		return fmt.Errorf("failed to create outbox message for entry %s: %w", entry.ID, err)
	}

	r.logger.Debug("Ledger entry recorded",
		"entry_id", entry.ID.String(),
		"account_id", entry.AccountID.String(),
		"type", entry.Type,
		"outbox_id", message.ID,
	)
	return nil
}

// RecordStatusChange enqueues an account.status_changed event
func (r *EntryRecorderImpl) RecordStatusChange(ctx context.Context, repos uow.Repositories, acc *account.Account, previous shared.AccountStatus) error {
	message, err := outbox.NewStatusChangeMessage(acc, previous)
	if err != nil {
		return fmt.Errorf("failed to create status change payload for account %s: %w", acc.ID, err)
	}

	if err := repos.Outbox().Create(ctx, message); err != nil {
		return fmt.Errorf("failed to create status change outbox message for account %s: %w", acc.ID, err)
	}

	r.logger.Debug("Status change recorded",
		"account_id", acc.ID.String(),
		"from", previous,
		"to", acc.Status,
		"outbox_id", message.ID,
	)
	return nil
}
