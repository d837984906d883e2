package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/token-curator/internal/logging"
)

// RunClickHouseMigrations applies every .sql file under migrationsPath in name order.
// Statements must be idempotent (CREATE ... IF NOT EXISTS); there is no version table.
func RunClickHouseMigrations(ctx context.Context, db *ClickHouseDB, migrationsPath string) error {
	files, err := clickHouseMigrationFiles(migrationsPath)
	if err != nil {
		return err
	}

	logger := logging.FromContext(ctx).WithField("path", migrationsPath)
	if len(files) == 0 {
		logger.Info("No ClickHouse migration files found")
		return nil
	}

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(migrationsPath, name)) // #nosec G304 - name comes from the migrations directory listing
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		statements := splitSQLStatements(string(content))
		for i, stmt := range statements {
			if err := db.Exec(ctx, stmt); err != nil {
				logger.WithError(err).WithFields(map[string]interface{}{
					"file":      name,
					"statement": i + 1,
				}).Error("ClickHouse migration statement failed")
				return fmt.Errorf("failed to execute statement %d in %s: %w", i+1, name, err)
			}
		}

		logger.WithFields(map[string]interface{}{
			"file":       name,
			"statements": len(statements),
		}).Info("Applied ClickHouse migration")
	}
	return nil
}

func clickHouseMigrationFiles(migrationsPath string) ([]string, error) {
	entries, err := os.ReadDir(migrationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// splitSQLStatements breaks a script into statements on lines ending with ';'.
// Comment lines are dropped and the trailing ';' is removed.
func splitSQLStatements(content string) []string {
	var (
		statements []string
		current    []string
	)
	flush := func() {
		stmt := strings.TrimSuffix(strings.TrimSpace(strings.Join(current, "\n")), ";")
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current = append(current, line)
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return statements
}
