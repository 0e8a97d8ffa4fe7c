// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/favmirror/internal/syncctx"
)

// ContextStore implements syncctx.Store on the sync_contexts table.
type ContextStore struct {
	db *sql.DB
}

var _ syncctx.Store = (*ContextStore)(nil)

func saveContext(ctx context.Context, q querier, c *syncctx.Context) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal sync context: %w", err)
	}
	var heartbeat any
	if c.HeartbeatAt != nil {
		heartbeat = toMillis(*c.HeartbeatAt)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO sync_contexts (id, collection_id, status, owner_id, started_at, updated_at, heartbeat_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			owner_id = excluded.owner_id,
			updated_at = excluded.updated_at,
			heartbeat_at = excluded.heartbeat_at,
			data = excluded.data`,
		c.ID, c.CollectionID, string(c.Status), c.OwnerID,
		toMillis(c.StartedAt), toMillis(c.UpdatedAt), heartbeat, string(data))
	if err != nil {
		return fmt.Errorf("save sync context %s: %w", c.ID, err)
	}
	return nil
}

func decodeContext(data string) (*syncctx.Context, error) {
	var c syncctx.Context
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("unmarshal sync context: %w", err)
	}
	return &c, nil
}

func getContext(ctx context.Context, q querier, id string) (*syncctx.Context, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM sync_contexts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, syncctx.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load sync context %s: %w", id, err)
	}
	return decodeContext(data)
}

// Save inserts or replaces a context.
func (s *ContextStore) Save(ctx context.Context, c *syncctx.Context) error {
	return saveContext(ctx, s.db, c)
}

// CompareAndSave replaces a context only while its stored owner and update
// time still match prev.
func (s *ContextStore) CompareAndSave(ctx context.Context, c *syncctx.Context, prev syncctx.Revision) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal sync context: %w", err)
	}
	var heartbeat any
	if c.HeartbeatAt != nil {
		heartbeat = toMillis(*c.HeartbeatAt)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync context update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := getContext(ctx, tx, c.ID)
	if err != nil {
		return err
	}
	if !prev.Matches(cur) {
		return syncctx.ErrConcurrentUpdate
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE sync_contexts
		SET status = ?, owner_id = ?, updated_at = ?, heartbeat_at = ?, data = ?
		WHERE id = ? AND owner_id = ? AND updated_at = ?`,
		string(c.Status), c.OwnerID, toMillis(c.UpdatedAt), heartbeat, string(data),
		c.ID, prev.OwnerID, toMillis(prev.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save sync context %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save sync context %s: %w", c.ID, err)
	}
	if n == 0 {
		return syncctx.ErrConcurrentUpdate
	}
	return tx.Commit()
}

// Get returns a context by id.
func (s *ContextStore) Get(ctx context.Context, id string) (*syncctx.Context, error) {
	return getContext(ctx, s.db, id)
}

// Active returns the newest pending or in-progress context of a collection.
func (s *ContextStore) Active(ctx context.Context, collectionID string) (*syncctx.Context, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM sync_contexts
		WHERE collection_id = ? AND status IN (?, ?)
		ORDER BY started_at DESC, id DESC LIMIT 1`,
		collectionID, string(syncctx.StatusPending), string(syncctx.StatusInProgress)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active sync context: %w", err)
	}
	return decodeContext(data)
}

// List returns matching contexts, newest first.
func (s *ContextStore) List(ctx context.Context, filter syncctx.Filter) ([]*syncctx.Context, error) {
	var (
		where []string
		args  []any
	)
	if filter.CollectionID != "" {
		where = append(where, "collection_id = ?")
		args = append(args, filter.CollectionID)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT data FROM sync_contexts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync contexts: %w", err)
	}
	defer closeWithLog(rows, "sync context rows")

	var out []*syncctx.Context
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan sync context: %w", err)
		}
		c, err := decodeContext(data)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Touch refreshes the heartbeat of a context.
func (s *ContextStore) Touch(ctx context.Context, id string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin heartbeat: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := getContext(ctx, tx, id)
	if err != nil {
		return err
	}
	c.Heartbeat(at)
	if err := saveContext(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a context.
func (s *ContextStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_contexts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete sync context %s: %w", id, err)
	}
	return nil
}

// Prune deletes completed and cleaned contexts last updated before the cutoff.
func (s *ContextStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_contexts WHERE status IN (?, ?) AND updated_at < ?`,
		string(syncctx.StatusCompleted), string(syncctx.StatusCleaned), toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("prune sync contexts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune sync contexts: %w", err)
	}
	return int(n), nil
}
