package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/token-curator/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func testPostgresConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		Host:           envOr("POSTGRES_HOST", "localhost"),
		Port:           envOr("POSTGRES_PORT", "5432"),
		Database:       envOr("POSTGRES_DB", "token_curator_test"),
		User:           envOr("POSTGRES_USER", "curator"),
		Password:       envOr("POSTGRES_PASSWORD", "curator_dev_password"),
		MaxConnections: 5,
	}
}

func testClickHouseConfig() *config.ClickHouseConfig {
	return &config.ClickHouseConfig{
		Host:     envOr("CLICKHOUSE_HOST", "localhost"),
		Port:     envOr("CLICKHOUSE_PORT", "9000"),
		Database: envOr("CLICKHOUSE_DB", "default"),
		User:     envOr("CLICKHOUSE_USER", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setupPostgres connects to a migrated test database, skipping when none is reachable.
// Tables are truncated before the test runs.
func setupPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(cfg.URL(), "../../migrations/postgres"); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	ctx := testContext(t)
	if _, err := db.Pool().Exec(ctx, `TRUNCATE ratings, votes, projects, users`); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	return db
}

// setupClickHouse connects to a migrated ClickHouse, skipping when none is reachable
func setupClickHouse(t *testing.T) *ClickHouseDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewClickHouseDB(testClickHouseConfig())
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := testContext(t)
	if err := RunClickHouseMigrations(ctx, db, "../../migrations/clickhouse"); err != nil {
		t.Fatalf("failed to migrate ClickHouse: %v", err)
	}
	if err := db.Exec(ctx, `TRUNCATE TABLE IF EXISTS roi_snapshots`); err != nil {
		t.Fatalf("failed to truncate roi_snapshots: %v", err)
	}
	return db
}
