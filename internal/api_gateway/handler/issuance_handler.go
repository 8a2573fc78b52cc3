package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/token-wallet-ledger/internal/api_gateway/middleware"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

// IssuanceHandler handles plan issuance
type IssuanceHandler struct {
	engine service.WalletEngine
	logger *slog.Logger
}

func NewIssuanceHandler(logger *slog.Logger, engine service.WalletEngine) *IssuanceHandler {
	return &IssuanceHandler{
		engine: engine,
		logger: logger,
	}
}

// Issue credits the tokens a plan grants for one period. A repeat call for the
// same period answers 200 with duplicate set.
func (h *IssuanceHandler) Issue(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	var req IssuanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	factor := decimal.NewFromInt(1)
	if req.ProrationFactor != nil {
		factor = *req.ProrationFactor
	}

	var (
		result *service.IssuanceResult
		err    error
	)
	ctx := c.Request.Context()
	if req.ReferencePrice != nil {
		result, err = h.engine.IssueForPlan(ctx, service.IssuanceRequest{
			AccountID:       id,
			PlanID:          req.PlanID,
			PlanPrice:       req.PlanPrice,
			ReferencePrice:  *req.ReferencePrice,
			EffectiveFrom:   req.EffectiveFrom,
			Bonus:           req.Bonus,
			ProrationFactor: factor,
			ProcessedBy:     req.ProcessedBy,
			CorrelationID:   middleware.GetCorrelationID(c),
		})
	} else {
		result, err = h.engine.IssueForPlanAtMarket(ctx, service.MarketIssuanceRequest{
			AccountID:       id,
			PlanID:          req.PlanID,
			PlanPrice:       req.PlanPrice,
			Symbol:          req.Symbol,
			EffectiveFrom:   req.EffectiveFrom,
			Bonus:           req.Bonus,
			ProrationFactor: factor,
			ProcessedBy:     req.ProcessedBy,
			CorrelationID:   middleware.GetCorrelationID(c),
		})
	}
	if err != nil {
		RespondError(c, err)
		return
	}

	response := mapIssuanceToResponse(result.Record, result.Duplicate)
	if result.Duplicate {
		RespondOK(c, response)
		return
	}
	RespondCreated(c, response)
}
