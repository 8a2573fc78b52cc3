package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/token-wallet-ledger/internal/api_gateway/middleware"
	"github.com/token-wallet-ledger/internal/domain/shared"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

// IdempotencyKeyHeader carries the caller's idempotency key
const IdempotencyKeyHeader = "Idempotency-Key"

// MutationHandler handles balance mutations
type MutationHandler struct {
	engine service.WalletEngine
	logger *slog.Logger
}

func NewMutationHandler(logger *slog.Logger, engine service.WalletEngine) *MutationHandler {
	return &MutationHandler{
		engine: engine,
		logger: logger,
	}
}

func (h *MutationHandler) Credit(c *gin.Context) {
	h.mutate(c, h.engine.Credit)
}

func (h *MutationHandler) Debit(c *gin.Context) {
	h.mutate(c, h.engine.Debit)
}

func (h *MutationHandler) Hold(c *gin.Context) {
	h.mutate(c, h.engine.Hold)
}

// Release needs release_type in the body
func (h *MutationHandler) Release(c *gin.Context) {
	h.mutate(c, h.engine.Release)
}

type mutationFunc func(ctx context.Context, req service.MutationRequest) (*service.MutationResult, error)

// mutate answers 201 for a new entry and 200 for a replay of an earlier one
func (h *MutationHandler) mutate(c *gin.Context, apply mutationFunc) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	var req MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if key == "" {
		key = req.IdempotencyKey
	}

	result, err := apply(c.Request.Context(), service.MutationRequest{
		AccountID:      id,
		Amount:         req.Amount,
		EntryType:      shared.EntryType(req.EntryType),
		ReleaseType:    shared.ReleaseType(req.ReleaseType),
		Reference:      req.Reference,
		Meta:           req.Meta,
		IdempotencyKey: key,
		ProcessedBy:    req.ProcessedBy,
		CorrelationID:  middleware.GetCorrelationID(c),
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	response := MutationResponse{
		Entry:    mapEntryToResponse(result.Entry),
		Balance:  mapBalanceToResponse(result.Balance),
		Replayed: result.Replayed,
	}
	if result.Replayed {
		RespondOK(c, response)
		return
	}
	RespondCreated(c, response)
}
