package migrate

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

const downMarker = "-- +migrate Down"

// Up applies every not yet recorded migrations/*.sql file in lexical order and
// returns the applied filenames. Each file runs in its own transaction
// together with its schema_migrations row.
func Up(ctx context.Context, database *sqlx.DB, dir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := database.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	var applied []string
	for _, file := range files {
		filename := filepath.Base(file)
		var exists bool
		if err := database.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			return applied, fmt.Errorf("read migration state: %w", err)
		}
		if exists {
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return applied, err
		}
		if err := applyFile(ctx, database, filename, string(content)); err != nil {
			return applied, fmt.Errorf("apply %s: %w", filename, err)
		}
		logger.Info("migration applied", "file", filename)
		applied = append(applied, filename)
	}
	return applied, nil
}

func applyFile(ctx context.Context, database *sqlx.DB, filename, content string) error {
	tx, err := database.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range SplitStatements(UpSection(content)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// UpSection returns the part of a migration file before the Down marker.
func UpSection(content string) string {
	up, _, _ := strings.Cut(content, downMarker)
	return up
}

// SplitStatements splits on lines containing a semicolon and drops comment
// lines. Statements with embedded semicolons in string literals are not
// supported.
func SplitStatements(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Contains(line, ";") {
			statements = appendStatement(statements, current.String())
			current.Reset()
		}
	}
	return appendStatement(statements, current.String())
}

func appendStatement(statements []string, stmt string) []string {
	if strings.TrimSpace(stmt) == "" {
		return statements
	}
	return append(statements, stmt)
}
