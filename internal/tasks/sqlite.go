// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/favmirror/internal/logging"
)

// SQLStore implements Store on the tasks table of the mirror database. The
// table is created by the mirror store's migrations.
type SQLStore struct {
	db *sql.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps a migrated mirror database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func millis(t time.Time) int64 { return t.UnixMilli() }

// Save inserts or replaces a task.
func (s *SQLStore) Save(ctx context.Context, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	var notBefore any
	if t.NotBefore != nil {
		notBefore = millis(*t.NotBefore)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, kind, status, priority, created_at, updated_at, not_before, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			priority = excluded.priority,
			updated_at = excluded.updated_at,
			not_before = excluded.not_before,
			data = excluded.data`,
		t.ID, string(t.Kind), string(t.Status), t.Priority,
		millis(t.CreatedAt), millis(t.UpdatedAt), notBefore, string(data))
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

func decodeTask(data string) (*Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &t, nil
}

func (s *SQLStore) queryOne(ctx context.Context, query string, args ...any) (*Task, error) {
	var data string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if err != nil {
		return nil, err
	}
	return decodeTask(data)
}

// Get returns a task by id.
func (s *SQLStore) Get(ctx context.Context, id string) (*Task, error) {
	t, err := s.queryOne(ctx, `SELECT data FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	return t, nil
}

// List returns matching tasks, newest first.
func (s *SQLStore) List(ctx context.Context, filter Filter) ([]*Task, error) {
	var args []any
	query := `SELECT data FROM tasks`
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close task rows")
		}
	}()

	var out []*Task
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t, err := decodeTask(data)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// NextPending returns the next due pending task.
func (s *SQLStore) NextPending(ctx context.Context, now time.Time) (*Task, error) {
	t, err := s.queryOne(ctx, `
		SELECT data FROM tasks
		WHERE status = ? AND (not_before IS NULL OR not_before <= ?)
		ORDER BY priority DESC, created_at ASC, id ASC
		LIMIT 1`,
		string(StatusPending), millis(now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load next pending task: %w", err)
	}
	return t, nil
}

// Delete removes a task.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// Prune deletes terminal tasks last updated before the cutoff.
func (s *SQLStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE status IN (?, ?, ?) AND updated_at < ?`,
		string(StatusCompleted), string(StatusFailed), string(StatusCancelled), millis(before))
	if err != nil {
		return 0, fmt.Errorf("prune tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune tasks: %w", err)
	}
	return int(n), nil
}
