package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration is one forward-only schema step. Versions are applied in ascending order.
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// MigrationRecord represents a row in the schema_migrations table
type MigrationRecord struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

// migrations holds the bootstrap schema. Content tables belong to the content
// service and are not managed here.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_app_meta",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS app_meta (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at DATETIME NOT NULL
			);`)
			return err
		},
	},
	{
		Version: 2,
		Name:    "create_boot_history",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS boot_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				environment TEXT NOT NULL,
				modules TEXT NOT NULL,
				booted_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_boot_history_booted_at ON boot_history(booted_at DESC);`)
			return err
		},
	},
}

// Migrations returns the registered migrations in apply order
func Migrations() []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	return out
}

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist
func (s *SQLite) ensureMigrationsTable(ctx context.Context) error {
	_, err := s.WriteDB.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME NOT NULL
	);`)
	return err
}

// AppliedMigrations returns the migrations recorded as applied
func (s *SQLite) AppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := s.WriteDB.QueryContext(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var rec MigrationRecord
		if err := rows.Scan(&rec.Version, &rec.Name, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Migrate applies every pending migration and returns the resulting schema version
func (s *SQLite) Migrate(ctx context.Context) (int, error) {
	applied, err := s.AppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	current := 0
	for _, rec := range applied {
		if rec.Version > current {
			current = rec.Version
		}
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		start := time.Now()
		err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			_, err := tx.Exec(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.Version, m.Name, time.Now().UTC())
			return err
		})
		if err != nil {
			return current, fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		current = m.Version
		s.Logger.Infow("Applied migration", "version", m.Version, "name", m.Name, "duration", time.Since(start))
	}

	return current, nil
}
