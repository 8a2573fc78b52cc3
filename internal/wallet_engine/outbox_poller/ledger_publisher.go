package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/domain/outbox"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/platform/messaging/producers"
)

// MessagePublisher delivers one outbox message and marks it processed
type MessagePublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// LedgerPublisher archives ledger entries and relays every outbox event to Kafka
type LedgerPublisher struct {
	outboxRepo outbox.Repository
	archive    ledger.Archive
	events     producers.EventPublisher
	logger     *slog.Logger
}

// NewLedgerPublisher creates a new publisher
func NewLedgerPublisher(
	outboxRepo outbox.Repository,
	archive ledger.Archive,
	events producers.EventPublisher,
	logger *slog.Logger,
) *LedgerPublisher {
	return &LedgerPublisher{
		outboxRepo: outboxRepo,
		archive:    archive,
		events:     events,
		logger:     logger,
	}
}

// Publish is safe to repeat: the archive upserts by entry id and consumers
// of the event topic deduplicate by aggregate id.
func (p *LedgerPublisher) Publish(ctx context.Context, message *outbox.Message) error {
	logger := p.logger.With(
		"outbox_id", message.ID,
		"event_type", message.EventType,
		"aggregate_id", message.AggregateID.String(),
	)

	if message.IsLedgerEntry() {
		entry, err := message.GetLedgerEntry()
		if err != nil {
			logger.Error("Failed to unmarshal ledger entry from outbox payload", "error", err)
			if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
				logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "update_error", updateErr)
			}
			return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
		}

		if err := p.archive.Store(ctx, entry); err != nil {
			logger.Error("Failed to archive ledger entry", "entry_id", entry.ID.String(), "error", err)
			return fmt.Errorf("failed to archive ledger entry %s: %w", entry.ID, err)
		}
		logger.Debug("Archived ledger entry", "entry_id", entry.ID.String())
	}

	if err := p.events.PublishEvent(ctx, message.AccountID.String(), string(message.EventType), message.Payload); err != nil {
		return fmt.Errorf("failed to publish outbox %d: %w", message.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("outbox %d published, but failed to mark it PROCESSED: %w", message.ID, err)
	}

	logger.Info("Outbox message published and marked as PROCESSED")
	return nil
}
