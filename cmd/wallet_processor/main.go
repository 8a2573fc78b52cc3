package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/token-wallet-ledger/internal/config"
	"github.com/token-wallet-ledger/internal/data/mongo"
	"github.com/token-wallet-ledger/internal/data/postgres"
	"github.com/token-wallet-ledger/internal/logger"
	"github.com/token-wallet-ledger/internal/platform/messaging/consumers"
	"github.com/token-wallet-ledger/internal/platform/messaging/producers"
	"github.com/token-wallet-ledger/internal/platform/persistence"
	"github.com/token-wallet-ledger/internal/platform/pricing"
	"github.com/token-wallet-ledger/internal/wallet_engine/components"
	"github.com/token-wallet-ledger/internal/wallet_engine/consumer"
	"github.com/token-wallet-ledger/internal/wallet_engine/outbox_poller"
	"github.com/token-wallet-ledger/internal/wallet_engine/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("wallet_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Wallet Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// A nil *DLQProducer must not reach the handler as a non-nil interface
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	} else {
		log.Warn("DLQ topic not configured, rejected commands will only be logged")
	}

	eventProducer, err := producers.NewLedgerEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize ledger event producer", "error", err)
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

	unitOfWork := postgres.NewUnitOfWork(log, postgresDB.Pool())
	metrics := service.NewMetrics(prometheus.NewRegistry())
	engine := components.CreateEngine(unitOfWork, prices, metrics, log, cfg)
	processor := components.CreateCommandProcessor(engine, log, cfg)

	commandHandler := consumer.NewCommandHandler(log, processor, deadLetters)

	// The poller runs outside any unit of work, straight on the pool
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB.Pool())
	ledgerPublisher := outbox_poller.NewLedgerPublisher(outboxRepo, archive, eventProducer, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, ledgerPublisher, log)

	errChan := make(chan error, 1)

	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.CommandTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.CommandTopic, cfg.Kafka.ConsumerGroup, commandHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	stopped := make(chan struct{})
	go func() {
		<-kafkaConsumer.Done()
		wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if pool, ok := processor.(*service.WorkerPoolCommandProcessor); ok {
		pool.Shutdown()
	}

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing ledger event producer", "error", err)
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	postgresDB.Close()

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Wallet Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Wallet Processor shutdown completed with errors")
	} else {
		log.Info("Wallet Processor shutdown completed successfully")
	}
}
