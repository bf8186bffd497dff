package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calum/marketsync/internal/config"
	"github.com/calum/marketsync/internal/domain"
	"github.com/calum/marketsync/internal/dq"
	"github.com/calum/marketsync/internal/logger"
	"github.com/calum/marketsync/internal/queue"
	"github.com/calum/marketsync/internal/repository"
	"github.com/calum/marketsync/internal/service"
	"github.com/calum/marketsync/internal/source"
	"github.com/calum/marketsync/internal/source/marketapi"
	"github.com/calum/marketsync/internal/source/sellerapi"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	once := flag.Bool("once", false, "Run a single poll cycle and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		FilePath:    cfg.Log.FilePath,
		ServiceName: "marketsync-worker",
	})
	logger.SetDefaultLogger(appLogger)

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	taskRepo := repository.NewTaskRepository(db)
	rawRepo := repository.NewRawPayloadRepository(db)
	snapRepo := repository.NewSnapshotRepository(db)
	currentRepo := repository.NewCurrentStateRepository(db)
	issueRepo := repository.NewDQIssueRepository(db)
	featureRepo := repository.NewFeatureRepository(db)

	// Initialize source clients
	sellerClient := sellerapi.NewClient(&source.ClientConfig{
		BaseURL:    cfg.Sources.SellerAPI.BaseURL,
		APIKey:     cfg.Sources.SellerAPI.APIKey,
		RatePerSec: cfg.Sources.SellerAPI.RatePerSec,
		Burst:      cfg.Sources.SellerAPI.Burst,
		Timeout:    cfg.Sources.SellerAPI.Timeout,
	})
	marketClient := marketapi.NewClient(&source.ClientConfig{
		BaseURL:    cfg.Sources.MarketAPI.BaseURL,
		APIKey:     cfg.Sources.MarketAPI.APIKey,
		RatePerSec: cfg.Sources.MarketAPI.RatePerSec,
		Burst:      cfg.Sources.MarketAPI.Burst,
		Timeout:    cfg.Sources.MarketAPI.Timeout,
	})

	// Initialize services
	dqEngine := dq.NewEngine(dq.Config{
		StalenessThreshold:  time.Duration(cfg.DQ.StalenessHours) * time.Hour,
		VolatilityThreshold: cfg.DQ.VolatilityThreshold,
	})
	syncService := service.NewSyncService(sellerClient, marketClient, rawRepo, snapRepo, currentRepo, issueRepo, dqEngine)
	featureService := service.NewFeatureService(snapRepo, featureRepo)

	// Build the worker with an exhaustive handler table
	backoff := queue.NewBackoff(cfg.Worker.BackoffBase, cfg.Worker.BackoffMax, time.Now().UnixNano())
	worker, err := queue.NewWorker(taskRepo, map[domain.TaskType]queue.Handler{
		domain.TaskTypeItemSync:         syncService.HandleItemSync,
		domain.TaskTypeFeatureRecompute: featureService.HandleFeatureRecompute,
	}, backoff, appLogger, queue.Config{
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to build worker")
	}

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	if *once {
		worker.RunOnce(ctx)
		return
	}

	if err := worker.Run(ctx); err != nil {
		appLogger.WithError(err).Fatal("Worker exited with error")
	}
}
