package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Well-known app_meta keys
const (
	MetaLastEnvironment = "last_environment"
	MetaLastBootAt      = "last_boot_at"
)

// SetMeta upserts a metadata value
func (s *SQLite) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.WriteDB.ExecContext(ctx, `
		INSERT INTO app_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta reads a metadata value, returning ErrNotFound if absent
func (s *SQLite) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.ReadDB.QueryRowContext(ctx, `SELECT value FROM app_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

// BootRecord is one row of boot_history
type BootRecord struct {
	ID          int64
	Environment string
	Modules     []string
	BootedAt    time.Time
}

// RecordBoot stores a completed assembly and updates the last-boot metadata
func (s *SQLite) RecordBoot(ctx context.Context, environment string, modules []string) error {
	now := time.Now().UTC()
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO boot_history (environment, modules, booted_at) VALUES (?, ?, ?)`,
			environment, strings.Join(modules, ","), now); err != nil {
			return fmt.Errorf("failed to insert boot record: %w", err)
		}
		for k, v := range map[string]string{
			MetaLastEnvironment: environment,
			MetaLastBootAt:      now.Format(time.RFC3339Nano),
		} {
			if _, err := tx.Exec(`
				INSERT INTO app_meta (key, value, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				k, v, now); err != nil {
				return fmt.Errorf("failed to update meta %s: %w", k, err)
			}
		}
		return nil
	})
}

// LastBoots returns up to limit boot records, newest first
func (s *SQLite) LastBoots(ctx context.Context, limit int) ([]BootRecord, error) {
	rows, err := s.ReadDB.QueryContext(ctx,
		`SELECT id, environment, modules, booted_at FROM boot_history ORDER BY booted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query boot history: %w", err)
	}
	defer rows.Close()

	var out []BootRecord
	for rows.Next() {
		var rec BootRecord
		var modules string
		if err := rows.Scan(&rec.ID, &rec.Environment, &modules, &rec.BootedAt); err != nil {
			return nil, fmt.Errorf("failed to scan boot record: %w", err)
		}
		if modules != "" {
			rec.Modules = strings.Split(modules, ",")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
