// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

// Package store is the local SQLite mirror of collections, items, uploaders,
// memberships, statistics snapshots and the deletion log.
//
// The database runs in WAL mode so API readers never block the sync writer.
// Write transactions begin IMMEDIATE and wait on busy_timeout rather than
// failing with SQLITE_BUSY mid-transaction.
//
// All writes go through WithTx. Readers on *Store run outside transactions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // registers "sqlite3"
	_ "github.com/ncruces/go-sqlite3/embed"  // embedded SQLite build

	"github.com/tomtom215/favmirror/internal/metrics"
)

// Config configures the store.
type Config struct {
	Path                string
	BackupBeforeMigrate bool
	MaxOpenConns        int
}

// Store wraps the SQLite connection pool.
type Store struct {
	db                  *sql.DB
	path                string
	backupBeforeMigrate bool
	contexts            *ContextStore
}

// dsn builds the connection string. Pragmas are applied to every pooled connection.
func dsn(path string) string {
	return "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=cache_size(-16000)" +
		"&_txlock=immediate"
}

// Open opens (creating if needed) the database at cfg.Path. It does not
// migrate; call Migrate before using the store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 8
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:                  conn,
		path:                cfg.Path,
		backupBeforeMigrate: cfg.BackupBeforeMigrate,
	}
	s.contexts = &ContextStore{db: conn}
	return s, nil
}

// Close checkpoints the WAL and closes the pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.db = nil
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// JournalMode returns the active journal mode (expected "wal").
func (s *Store) JournalMode(ctx context.Context) (string, error) {
	var mode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		return "", fmt.Errorf("failed to read journal mode: %w", err)
	}
	return mode, nil
}

// SyncContexts returns the sync context store backed by this database.
func (s *Store) SyncContexts() *ContextStore {
	return s.contexts
}

// DB exposes the connection pool to stores kept in other packages, such as
// the task queue. Their tables are still created by Migrate.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Tx is a write transaction.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	return s.WithNamedTx(ctx, "tx", fn)
}

// WithNamedTx is WithTx with a unit label for transaction metrics
// (e.g. "page", "covers", "deletion").
func (s *Store) WithNamedTx(ctx context.Context, unit string, fn func(*Tx) error) (err error) {
	start := time.Now()
	defer func() { metrics.RecordTx(unit, time.Since(start), err) }()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin %s transaction: %w", unit, err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err = fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s transaction: %w", unit, err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// nullMillis converts an optional time to a nullable INTEGER argument.
func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

// nullBlob stores an empty payload as NULL.
func nullBlob(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
