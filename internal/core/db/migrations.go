package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/mailrules/migrations"
)

/*
 * Schema migration runner.
 *
 * Migrations are the embedded NNN_name.sql files for the connection's driver,
 * applied in filename order. Each applied file is recorded in
 * schema_migrations with its SHA256 checksum; editing a file after it was
 * applied fails every later run until the file is restored.
 *
 * Each migration runs in its own transaction together with its bookkeeping
 * row, so a failed statement leaves no partial schema behind.
 */

// MigrationStatus describes one embedded migration file.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

type migration struct {
	ID       string
	Checksum string
	SQL      string
}

type appliedMigration struct {
	ID          string `db:"migration_id"`
	Checksum    string `db:"checksum"`
	AppliedAt   string `db:"applied_at"`
	ExecutionMs int64  `db:"execution_ms"`
}

// MigrateUp applies every pending migration and returns the IDs it applied.
func MigrateUp(ctx context.Context, db *sqlx.DB) ([]string, error) {
	pending, err := loadMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	applied, err := listApplied(ctx, db)
	if err != nil {
		return nil, err
	}
	if err := validateChecksums(pending, applied); err != nil {
		return nil, fmt.Errorf("migration checksum validation failed: %w", err)
	}

	var ran []string
	for _, m := range pending {
		if _, ok := applied[m.ID]; ok {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return ran, err
		}
		ran = append(ran, m.ID)
	}
	return ran, nil
}

// MigrateStatus reports every embedded migration and whether it is applied.
func MigrateStatus(ctx context.Context, db *sqlx.DB) ([]MigrationStatus, error) {
	all, err := loadMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	applied, err := listApplied(ctx, db)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(all))
	for _, m := range all {
		status := MigrationStatus{ID: m.ID, Checksum: m.Checksum}
		if a, ok := applied[m.ID]; ok {
			status.Applied = true
			status.Checksum = a.Checksum
			status.ExecutionMs = a.ExecutionMs
			if ts, err := parseTime(a.AppliedAt); err == nil {
				status.AppliedAt = &ts
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// loadMigrations ensures the tracking table exists and parses the embedded
// migrations for the connection's driver.
func loadMigrations(ctx context.Context, db *sqlx.DB) ([]migration, error) {
	fsys, dir, err := migrations.ForDriver(db.DriverName())
	if err != nil {
		return nil, err
	}

	if err := createMigrationsTable(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	parsed, err := parseMigrationFiles(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	return parsed, nil
}

func parseMigrationFiles(fsys fs.FS, dir string) ([]migration, error) {
	var out []migration

	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}

		sum := sha256.Sum256(content)
		out = append(out, migration{
			ID:       path.Base(p),
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// createMigrationsTable must match schema_migrations in 001_initial_schema.sql.
func createMigrationsTable(ctx context.Context, db *sqlx.DB) error {
	appliedAtType := "TIMESTAMP WITH TIME ZONE"
	if db.DriverName() == "sqlite3" {
		appliedAtType = "TEXT"
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at `+appliedAtType+` NOT NULL,
			execution_ms INTEGER NOT NULL
		)`)
	return err
}

func listApplied(ctx context.Context, db *sqlx.DB) (map[string]appliedMigration, error) {
	var rows []appliedMigration
	err := db.SelectContext(ctx, &rows,
		"SELECT migration_id, checksum, applied_at, execution_ms FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}

	applied := make(map[string]appliedMigration, len(rows))
	for _, r := range rows {
		applied[r.ID] = r
	}
	return applied, nil
}

func validateChecksums(embedded []migration, applied map[string]appliedMigration) error {
	known := make(map[string]string, len(embedded))
	for _, m := range embedded {
		known[m.ID] = m.Checksum
	}

	for id, a := range applied {
		want, ok := known[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if a.Checksum != want {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, want, a.Checksum)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sqlx.DB, m migration) error {
	start := time.Now()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", m.ID, err)
	}
	defer tx.Rollback()

	// lib/pq does not accept several statements in one Exec
	for _, stmt := range splitStatements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %s: statement failed: %w", m.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(
		"INSERT INTO schema_migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		m.ID, m.Checksum, formatTime(time.Now()), time.Since(start).Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.ID, err)
	}
	return nil
}

// splitStatements drops "--" comment lines and splits on semicolons.
// Migration files must not put semicolons inside string literals.
func splitStatements(script string) []string {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	var stmts []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
