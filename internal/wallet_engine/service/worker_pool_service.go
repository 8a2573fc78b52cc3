package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/token-wallet-ledger/internal/domain/shared"
)

// ErrInvalidPoolSize rejects a non-positive worker pool size
var ErrInvalidPoolSize = errors.New("worker pool size must be positive")

// WorkerPoolCommandProcessor runs commands on a bounded ants pool
type WorkerPoolCommandProcessor struct {
	baseProcessor CommandProcessor
	pool          *ants.Pool
	logger        *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolCommandProcessor(
	baseProcessor CommandProcessor,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolCommandProcessor, error) {
	// ants treats a non-positive size as unbounded
	if config.Size <= 0 {
		return nil, ErrInvalidPoolSize
	}
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolCommandProcessor{
		baseProcessor: baseProcessor,
		pool:          pool,
		logger:        logger,
	}, nil
}

// ProcessCommand submits cmd to the pool and waits for its result.
func (s *WorkerPoolCommandProcessor) ProcessCommand(ctx context.Context, cmd *shared.WalletCommand) error {
	logger := s.logger
	if cmd.CorrelationID != "" {
		logger = s.logger.With("correlation_id", cmd.CorrelationID)
	}

	logger.Debug("Submitting command to worker pool",
		"command_id", cmd.CommandID.String(),
		"operation", cmd.Operation,
		"account_id", cmd.AccountID.String(),
	)

	resultChan := make(chan error, 1)

	// Workers must not share the caller's command value
	cmdCopy := *cmd

	err := s.pool.Submit(func() {
		resultChan <- s.baseProcessor.ProcessCommand(ctx, &cmdCopy)
	})
	if err != nil {
		logger.Error("Failed to submit command to worker pool",
			"command_id", cmd.CommandID.String(),
			"error", err,
		)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolCommandProcessor) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolCommandProcessor) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolCommandProcessor) Capacity() int {
	return s.pool.Cap()
}
