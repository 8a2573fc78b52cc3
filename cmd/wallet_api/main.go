package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/token-wallet-ledger/internal/api_gateway"
	"github.com/token-wallet-ledger/internal/config"
	"github.com/token-wallet-ledger/internal/data/mongo"
	"github.com/token-wallet-ledger/internal/data/postgres"
	"github.com/token-wallet-ledger/internal/logger"
	"github.com/token-wallet-ledger/internal/platform/persistence"
	"github.com/token-wallet-ledger/internal/platform/pricing"
	"github.com/token-wallet-ledger/internal/wallet_engine/components"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("wallet_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	archive := mongo.NewAuditArchive(log, mongoDB.Database(), cfg.MongoDB.AuditCollection)
	if err := archive.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create audit archive indexes", "error", err)
		os.Exit(1)
	}

	prices := pricing.NewRetryingProvider(log,
		pricing.NewRedisProvider(log, redisClient, cfg.Pricing.KeyPrefix, cfg.Pricing.MaxAge),
		pricing.RetryPolicy{
			InitialInterval: cfg.Pricing.RetryInitialDelay,
			MaxInterval:     cfg.Pricing.RetryMaxDelay,
			MaxTries:        cfg.Pricing.RetryMaxAttempts,
			Timeout:         cfg.Pricing.RequestTimeout,
		},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	unitOfWork := postgres.NewUnitOfWork(log, postgresDB.Pool())
	engine := components.CreateEngine(unitOfWork, prices, service.NewMetrics(registry), log, cfg)

	server := api_gateway.NewServer(log, cfg, engine, archive, registry)
	log.Info("REST server initialized")

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Drain requests before the stores they use go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	postgresDB.Close()

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
