// Package main applies, rolls back and inspects the Postgres and ClickHouse schemas.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"github.com/token-curator/internal/config"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/storage"
)

func main() {
	var (
		action  = flag.String("action", "up", "Migration action: up, down, goto, version")
		dbType  = flag.String("db", "postgres", "Database type: postgres, clickhouse")
		dir     = flag.String("dir", "migrations", "Directory holding the postgres/ and clickhouse/ migration folders")
		version = flag.Uint("version", 0, "Target version for -action goto")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	root := logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	defer root.Sync()
	logger := root.WithFields(map[string]interface{}{
		"db":     *dbType,
		"action": *action,
	})

	switch *dbType {
	case "postgres":
		err = runPostgres(&cfg.Database.Postgres, *action, filepath.Join(*dir, "postgres"), *version)
	case "clickhouse":
		err = runClickHouse(&cfg.Database.ClickHouse, *action, filepath.Join(*dir, "clickhouse"))
	default:
		err = fmt.Errorf("unknown database type: %s", *dbType)
	}
	if err != nil {
		logger.WithError(err).Fatal("Migration failed")
	}
	logger.Info("Migration finished")
}

func runPostgres(cfg *config.PostgresConfig, action, migrationsPath string, target uint) error {
	databaseURL := cfg.URL()

	switch action {
	case "up":
		return storage.RunMigrations(databaseURL, migrationsPath)
	case "down":
		return storage.RollbackMigrations(databaseURL, migrationsPath)
	case "goto":
		return storage.MigrateTo(databaseURL, migrationsPath, target)
	case "version":
		current, dirty, err := storage.MigrationVersion(databaseURL, migrationsPath)
		if err != nil {
			return err
		}
		logging.WithFields(map[string]interface{}{
			"version": current,
			"dirty":   dirty,
		}).Info("Current Postgres migration version")
		return nil
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
}

func runClickHouse(cfg *config.ClickHouseConfig, action, migrationsPath string) error {
	if action != "up" {
		return fmt.Errorf("ClickHouse migrations only support the 'up' action")
	}

	db, err := storage.NewClickHouseDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}()

	return storage.RunClickHouseMigrations(context.Background(), db, migrationsPath)
}
