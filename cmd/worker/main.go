// Package main provides the ROI refresh worker entry point for the token curation service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/token-curator/internal/adapter"
	"github.com/token-curator/internal/config"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/service"
	"github.com/token-curator/internal/storage"
)

func main() {
	fmt.Println("Token Curator ROI Worker")
	log.Println("Worker starting...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	defer logger.Sync()

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	// Redis is only used to drop stale ROI leaderboards
	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	oracle := adapter.NewPriceOracle(adapter.PriceOracleConfig{
		BaseURL:        cfg.Oracle.BaseURL,
		APIKey:         cfg.Oracle.APIKey,
		Timeout:        cfg.Oracle.Timeout,
		RequestsPerSec: cfg.Oracle.RequestsPerSec,
	})

	roiService := service.NewROIService(
		storage.NewROIRepository(clickhouse),
		storage.NewProjectRepository(postgres),
		oracle,
		storage.NewLeaderboardCache(redis, cfg.Cache.TTL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := service.NewROIScheduler(roiService, cfg.ROI.RefreshInterval)
	if err := scheduler.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start ROI scheduler")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutdown signal received, stopping ROI scheduler...")

	if err := scheduler.Stop(); err != nil {
		logger.WithError(err).Warn("Error stopping ROI scheduler")
	}

	logger.Info("Worker stopped. Goodbye!")
}
