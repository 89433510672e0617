// Copyright 2025 Blockscout
//
// logindexer wires the checkpoint store, dual-stream fetcher,
// correlation buffer, and batch persistor over a configured set of
// streams: EVM bridge logs, ZetaChain CCTXs, ERC-4337 user operations,
// and Celestia blobs. One goroutine per configured stream runs its own
// fetch/ingest/flush loop; all streams share the database pool, status
// broadcaster, and metrics namespace. Shutdown is signal-driven:
// SIGINT/SIGTERM cancels a root context fanned out to every goroutine.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/blockscout/indexing-core/internal/checkpoint"
	"github.com/blockscout/indexing-core/internal/config"
	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/persistor"
	"github.com/blockscout/indexing-core/internal/retry"
	"github.com/blockscout/indexing-core/internal/statuspublish"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	logger := log.New(os.Stdout, "[LogIndexer] ", log.LstdFlags)

	cfg, err := config.Load(*configPath, "LOGINDEXER")
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := database.NewClient(database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime.Duration(),
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime.Duration(),
	}, database.WithLogger(log.New(os.Stdout, "[Database] ", log.LstdFlags)))
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer dbClient.Close()

	if err := dbClient.MigrateUp(ctx); err != nil {
		logger.Fatalf("failed to run migrations: %v", err)
	}

	statusClient, err := statuspublish.NewClient(ctx, statuspublish.ClientConfig{
		ProjectID: cfg.Firestore.ProjectID,
		Enabled:   cfg.Firestore.Enabled,
		Logger:    log.New(os.Stdout, "[StatusPublish] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("failed to initialize status publisher: %v", err)
	}
	defer statusClient.Close()

	checkpointStore := checkpoint.New(dbClient,
		checkpoint.WithLogger(log.New(os.Stdout, "[Checkpoint] ", log.LstdFlags)),
		checkpoint.WithHarness(retry.New(retry.Policy{
			Interval:    cfg.Retry.InitialDelay.Duration(),
			MaxInterval: cfg.Retry.MaxDelay.Duration(),
			Exponential: cfg.Retry.Exponential,
		}, nil)),
	)

	runner := &streamRunner{
		cfg:         cfg,
		db:          dbClient,
		checkpoints: checkpointStore,
		pending:     database.NewPendingStoreAdapter(dbClient),
		persistor: persistor.New(dbClient, checkpointStore,
			persistor.WithLogger(log.New(os.Stdout, "[Persistor] ", log.LstdFlags))),
		broadcaster: statuspublish.NewBroadcaster(statusClient),
	}

	var wg sync.WaitGroup
	for _, streamCfg := range cfg.Streams {
		streamCfg := streamCfg
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.run(ctx, streamCfg)
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("shutdown signal received, stopping stream workers")
	cancel()
	wg.Wait()
	logger.Println("shutdown complete")
}
