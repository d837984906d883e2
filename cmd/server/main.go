// Package main provides the API server entry point for the token curation service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/token-curator/internal/adapter"
	"github.com/token-curator/internal/api"
	"github.com/token-curator/internal/config"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/service"
	"github.com/token-curator/internal/storage"
)

func main() {
	fmt.Println("Token Curator API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	defer logger.Sync()

	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

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

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// External collaborators
	oracle := adapter.NewPriceOracle(adapter.PriceOracleConfig{
		BaseURL:        cfg.Oracle.BaseURL,
		APIKey:         cfg.Oracle.APIKey,
		Timeout:        cfg.Oracle.Timeout,
		RequestsPerSec: cfg.Oracle.RequestsPerSec,
	})

	ledger, err := adapter.NewLedgerClient(cfg.Ledger.RPCURL, cfg.Ledger.Timeout)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ledger RPC")
	}
	defer ledger.Close()

	// Initialize repositories
	projectRepo := storage.NewProjectRepository(postgres)
	voteRepo := storage.NewVoteRepository(postgres)
	userRepo := storage.NewUserRepository(postgres)
	ratingRepo := storage.NewRatingRepository(postgres)
	roiRepo := storage.NewROIRepository(clickhouse)

	leaderboards := storage.NewLeaderboardCache(redis, cfg.Cache.TTL)

	logger.Info("Initializing services...")

	votingService := service.NewVotingService(projectRepo, voteRepo, leaderboards, cfg.Voting)
	roiService := service.NewROIService(roiRepo, projectRepo, oracle, leaderboards)
	projectService := service.NewProjectService(
		projectRepo,
		oracle,
		ledger,
		roiService,
		leaderboards,
		service.ProjectServiceConfig{
			Admin:            cfg.Admin,
			DefaultLogoURL:   cfg.Oracle.DefaultLogoURL,
			MaxConflictRetry: cfg.Voting.MaxConflictRetry,
		},
	)
	rankingService := service.NewRankingService(projectRepo, userRepo, ratingRepo, leaderboards)
	userService := service.NewUserService(userRepo, projectRepo, ratingRepo, ledger, leaderboards, cfg.Admin)

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		UserRPS:         cfg.RateLimit.UserRPS,
		UserBurst:       cfg.RateLimit.UserBurst,
	}

	server := api.NewServer(serverConfig, api.Services{
		Projects: projectService,
		Voting:   votingService,
		ROI:      roiService,
		Rankings: rankingService,
		Users:    userService,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
