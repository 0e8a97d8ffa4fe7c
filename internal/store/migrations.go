// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tomtom215/favmirror/internal/logging"
	"github.com/tomtom215/favmirror/internal/metrics"
)

// Migration is one versioned schema step.
type Migration struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Statements  []string  `json:"-"`
	AppliedAt   time.Time `json:"applied_at,omitempty"` // populated on query
}

// migrations returns all steps in ascending version order.
//
// Steps are append-only. Never modify or remove a step once stores exist
// at its version.
func migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "base_schema", Description: "Collections, items, uploaders, memberships, stats and deletion log", Statements: schemaV1},
		{Version: 2, Name: "global_deletion_flag", Description: "Fold per-membership deletion flags into items and rebuild memberships with removed_at", Statements: schemaV2},
		{Version: 3, Name: "sync_contexts", Description: "Persist sync contexts in the mirror database", Statements: schemaV3},
		{Version: 4, Name: "official_flag", Description: "Backfill items.is_official and index memberships by last_seen", Statements: schemaV4},
		{Version: 5, Name: "tasks", Description: "Persist the sync task queue", Statements: schemaV5},
	}
}

// ExpectedVersion is the schema version this build runs against.
func ExpectedVersion() int {
	all := migrations()
	return all[len(all)-1].Version
}

// tableExists reports whether a table is present.
func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	return n > 0, nil
}

// detectVersion returns the current version and whether it was inferred
// from an unversioned store holding the base schema.
func (s *Store) detectVersion(ctx context.Context) (version int, baseline bool, err error) {
	hasHistory, err := s.tableExists(ctx, "schema_migrations")
	if err != nil {
		return 0, false, err
	}
	if hasHistory {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
			return 0, false, fmt.Errorf("failed to get schema version: %w", err)
		}
		if version > 0 {
			return version, false, nil
		}
	}

	hasItems, err := s.tableExists(ctx, "items")
	if err != nil {
		return 0, false, err
	}
	if hasItems {
		return 1, true, nil
	}
	return 0, false, nil
}

// SchemaVersion returns the current schema version. A store without history
// that already holds the base tables reads as version 1; an empty store is 0.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	v, _, err := s.detectVersion(ctx)
	return v, err
}

// EnsureCurrent returns ErrSchemaNotCurrent unless the store is at ExpectedVersion.
func (s *Store) EnsureCurrent(ctx context.Context) error {
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if v != ExpectedVersion() {
		return fmt.Errorf("%w: at v%d, want v%d", ErrSchemaNotCurrent, v, ExpectedVersion())
	}
	return nil
}

// Migrate applies every step above the current version, each in its own
// transaction. On failure the store stays at the last applied version and
// the error wraps ErrMigrationFailed.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if _, err := s.db.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return 0, fmt.Errorf("%w: create migrations table: %w", ErrMigrationFailed, err)
	}

	current, baseline, err := s.detectVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	var pending []Migration
	for _, m := range migrations() {
		if m.Version > current {
			pending = append(pending, m)
		}
	}

	if len(pending) > 0 && current > 0 && s.backupBeforeMigrate {
		path, err := s.Backup(ctx, current)
		if err != nil {
			return 0, fmt.Errorf("%w: backup before migrating: %w", ErrMigrationFailed, err)
		}
		logging.Info().Str("backup", path).Int("from_version", current).Msg("Backed up database before migration")
	}

	if baseline {
		if err := s.recordBaseline(ctx); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
		logging.Info().Msg("Adopted unversioned store as schema v1")
	}

	applied := 0
	for _, m := range pending {
		if err := s.applyMigration(ctx, m); err != nil {
			metrics.SchemaVersion.Set(float64(m.Version - 1))
			return applied, fmt.Errorf("%w: v%d (%s): %w", ErrMigrationFailed, m.Version, m.Name, err)
		}
		applied++
		metrics.MigrationsApplied.Inc()
		logging.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applied schema migration")
	}

	metrics.SchemaVersion.Set(float64(ExpectedVersion()))
	return applied, nil
}

func (s *Store) recordBaseline(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, description, applied_at) VALUES (?, ?, ?, ?)`,
		1, "baseline", "Pre-existing base schema adopted", toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to record baseline version: %w", err)
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, description, applied_at) VALUES (?, ?, ?, ?)`,
		m.Version, m.Name, m.Description, toMillis(time.Now())); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// MigrationHistory returns applied migrations in version order.
func (s *Store) MigrationHistory(ctx context.Context) ([]Migration, error) {
	hasHistory, err := s.tableExists(ctx, "schema_migrations")
	if err != nil || !hasHistory {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT version, name, COALESCE(description, ''), applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}
	defer closeWithLog(rows, "migration rows")

	var history []Migration
	for rows.Next() {
		var m Migration
		var appliedAt int64
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		m.AppliedAt = fromMillis(appliedAt)
		history = append(history, m)
	}
	return history, rows.Err()
}

// PendingMigrations returns the steps Migrate would apply.
func (s *Store) PendingMigrations(ctx context.Context) ([]Migration, error) {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, m := range migrations() {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Backup copies the database to <path>.v<version>.bak with VACUUM INTO and
// returns the backup path. An existing backup at that path is replaced.
func (s *Store) Backup(ctx context.Context, version int) (string, error) {
	dest := fmt.Sprintf("%s.v%d.bak", s.path, version)
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to remove old backup: %w", err)
	}
	quoted := "'" + strings.ReplaceAll(dest, "'", "''") + "'"
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO `+quoted); err != nil {
		return "", fmt.Errorf("failed to write backup %s: %w", dest, err)
	}
	return dest, nil
}
