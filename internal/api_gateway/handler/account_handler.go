package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/token-wallet-ledger/internal/api_gateway/middleware"
	"github.com/token-wallet-ledger/internal/domain/account"
	"github.com/token-wallet-ledger/internal/domain/ledger"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

// AccountHandler handles HTTP requests for wallet accounts
type AccountHandler struct {
	engine  service.WalletEngine
	archive ledger.Archive
	logger  *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, engine service.WalletEngine, archive ledger.Archive) *AccountHandler {
	return &AccountHandler{
		engine:  engine,
		archive: archive,
		logger:  logger,
	}
}

// Create opens a wallet with a zero balance
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.engine.CreateAccount(c.Request.Context(), service.CreateAccountRequest{
		OwnerID:       req.OwnerID,
		CreatedBy:     req.CreatedBy,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	RespondCreated(c, AccountWithBalanceResponse{
		Account: mapAccountToResponse(result.Account),
		Balance: mapBalanceToResponse(result.Balance),
	})
}

func (h *AccountHandler) GetByID(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	acc, err := h.engine.GetAccount(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, mapAccountToResponse(acc))
}

// GetBalance works for frozen and suspended accounts too
func (h *AccountHandler) GetBalance(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	balance, err := h.engine.GetBalance(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, mapBalanceToResponse(*balance))
}

// GetEntries serves the account history from the audit archive, newest first.
// Entries appear once the outbox has relayed them.
func (h *AccountHandler) GetEntries(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	total, err := h.archive.CountByAccountID(ctx, id)
	if err != nil {
		h.logger.Error("Failed to count archived entries", "account_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	offset := (params.Page - 1) * params.PerPage
	entries, err := h.archive.GetByAccountID(ctx, id, params.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to get archived entries", "account_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, mapEntryToResponse(entry))
	}
	RespondWithPaginatedData(c, http.StatusOK, response, params.Page, params.PerPage, int(total))
}

func (h *AccountHandler) Freeze(c *gin.Context) {
	h.changeStatus(c, h.engine.Freeze)
}

func (h *AccountHandler) Suspend(c *gin.Context) {
	h.changeStatus(c, h.engine.Suspend)
}

func (h *AccountHandler) Reactivate(c *gin.Context) {
	h.changeStatus(c, h.engine.Reactivate)
}

type statusChangeFunc func(ctx context.Context, req service.StatusChangeRequest) (*account.Account, error)

func (h *AccountHandler) changeStatus(c *gin.Context, change statusChangeFunc) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	var req StatusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acc, err := change(c.Request.Context(), service.StatusChangeRequest{
		AccountID:     id,
		Reason:        req.Reason,
		Actor:         req.Actor,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, mapAccountToResponse(acc))
}

func parseAccountID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return uuid.Nil, false
	}
	return id, true
}
