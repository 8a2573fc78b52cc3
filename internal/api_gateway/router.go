package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/token-wallet-ledger/internal/api_gateway/handler"
	"github.com/token-wallet-ledger/internal/api_gateway/middleware"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

// Handlers groups the route handlers of the gateway
type Handlers struct {
	Accounts  *handler.AccountHandler
	Mutations *handler.MutationHandler
	Issuances *handler.IssuanceHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	h Handlers,
	engine service.WalletEngine,
	registry *prometheus.Registry,
	httpMetrics *middleware.HTTPMetrics,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Metrics(httpMetrics))

	v1 := r.Group("/api/v1")
	{
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", h.Accounts.Create)
			accounts.GET("/:id", h.Accounts.GetByID)
			accounts.GET("/:id/balance", h.Accounts.GetBalance)
			accounts.GET("/:id/entries", h.Accounts.GetEntries)

			accounts.POST("/:id/credits", h.Mutations.Credit)
			accounts.POST("/:id/debits", h.Mutations.Debit)
			accounts.POST("/:id/holds", h.Mutations.Hold)
			accounts.POST("/:id/releases", h.Mutations.Release)

			accounts.POST("/:id/freeze", h.Accounts.Freeze)
			accounts.POST("/:id/suspend", h.Accounts.Suspend)
			accounts.POST("/:id/reactivate", h.Accounts.Reactivate)

			accounts.POST("/:id/issuances", h.Issuances.Issue)
		}

		v1.GET("/engine/metrics", func(c *gin.Context) {
			handler.RespondOK(c, engine.Metrics().Snapshot())
		})
	}

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
