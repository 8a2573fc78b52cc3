package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/platform/messaging/producers"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

// CommandHandler handles wallet command messages from Kafka
type CommandHandler struct {
	processor service.CommandProcessor
	dlq       producers.DeadLetterPublisher
	logger    *slog.Logger
}

// NewCommandHandler creates a new handler. dlq may be nil when the DLQ is disabled.
func NewCommandHandler(
	logger *slog.Logger,
	processor service.CommandProcessor,
	dlq producers.DeadLetterPublisher,
) *CommandHandler {
	return &CommandHandler{
		processor: processor,
		dlq:       dlq,
		logger:    logger,
	}
}

// HandleMessage processes one command. A nil return lets the consumer commit the offset.
func (h *CommandHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var cmd shared.WalletCommand
	if err := json.Unmarshal(value, &cmd); err != nil {
		h.logger.Error("Failed to unmarshal wallet command from Kafka message",
			"error", err,
			"message_key", string(key),
		)
		return h.reject(ctx, key, value, fmt.Sprintf("malformed wallet command: %s", err), shared.ErrInvalidRequest.Error())
	}

	logger := h.logger.With("command_id", cmd.CommandID.String(), "operation", cmd.Operation)
	if cmd.CorrelationID != "" {
		logger = logger.With("correlation_id", cmd.CorrelationID)
	}

	logger.Info("Received wallet command",
		"account_id", cmd.AccountID.String(),
		"amount", cmd.Amount.String(),
	)

	err := h.processor.ProcessCommand(ctx, &cmd)
	if err == nil {
		logger.Info("Wallet command processed")
		return nil
	}

	if shared.IsBusinessError(err) {
		code := shared.ErrorCode(err)
		logger.Warn("Wallet command rejected",
			"account_id", cmd.AccountID.String(),
			"code", code,
			"error", err,
		)
		return h.reject(ctx, key, value, err.Error(), code)
	}

	logger.Error("Failed to process wallet command, offset will not be committed",
		"account_id", cmd.AccountID.String(),
		"error", err,
	)
	return fmt.Errorf("processing command %s failed: %w", cmd.CommandID.String(), err)
}

// reject parks a message that can never succeed. Only a failing DLQ write
// keeps the offset uncommitted.
func (h *CommandHandler) reject(ctx context.Context, key []byte, value []byte, reason string, code string) error {
	if h.dlq == nil {
		h.logger.Error("DLQ disabled, dropping rejected wallet command",
			"message_key", string(key),
			"reason", reason,
			"code", code,
		)
		return nil
	}

	if err := h.dlq.PublishToDLQ(ctx, string(key), value, reason, code); err != nil {
		h.logger.Error("Failed to publish rejected wallet command to DLQ",
			"dlq_error", err,
			"message_key", string(key),
		)
		return fmt.Errorf("failed to publish rejected command to DLQ: %w", err)
	}
	return nil
}
