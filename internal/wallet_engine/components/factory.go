package components

import (
	"log/slog"

	"github.com/token-wallet-ledger/internal/config"
	"github.com/token-wallet-ledger/internal/domain/uow"
	"github.com/token-wallet-ledger/internal/platform/pricing"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

// CreateEngine creates the wallet engine with all its dependencies.
func CreateEngine(
	unitOfWork uow.UnitOfWork,
	prices pricing.Provider,
	metrics *service.Metrics,
	logger *slog.Logger,
	cfg *config.Config,
) *service.Engine {
	return service.NewEngine(
		unitOfWork,
		NewRequestValidator(logger),
		NewAccountManager(logger),
		NewEntryRecorder(logger),
		prices,
		metrics,
		logger.With("component", "wallet_engine"),
		service.Options{
			OperationTimeout: cfg.Engine.OperationTimeout,
			ProcessedBy:      cfg.Engine.ProcessedBy,
			DefaultSymbol:    cfg.Pricing.DefaultSymbol,
		},
	)
}

// CreateCommandProcessor wraps the engine in a command processor backed by the
// worker pool, falling back to inline processing when the pool cannot start.
func CreateCommandProcessor(
	engine service.WalletEngine,
	logger *slog.Logger,
	cfg *config.Config,
) service.CommandProcessor {
	baseProcessor := service.NewCommandProcessor(engine, logger.With("component", "command_processor"))

	workerPoolProcessor, err := service.NewWorkerPoolCommandProcessor(
		baseProcessor,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool processor, falling back to base processor", "error", err)
		return baseProcessor
	}

	logger.Info("Created worker pool command processor", "pool_size", cfg.WorkerPool.Size)
	return workerPoolProcessor
}
