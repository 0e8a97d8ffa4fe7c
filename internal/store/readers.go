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

	"github.com/tomtom215/favmirror/internal/models"
)

// ListCollections returns all mirrored collections ordered by title.
func (s *Store) ListCollections(ctx context.Context) ([]models.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer closeWithLog(rows, "collection rows")

	var out []models.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CollectionByRemoteID returns a collection by its remote id, or ErrNotFound.
func (s *Store) CollectionByRemoteID(ctx context.Context, remoteID string) (*models.Collection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE remote_id = ?`, remoteID)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", remoteID, err)
	}
	return c, nil
}

// ListItems returns items held by a collection, newest favorite first. Items
// removed from the collection or deleted globally are included only when
// includeDeleted is set. A non-positive limit returns all rows.
func (s *Store) ListItems(ctx context.Context, collectionID int64, includeDeleted bool, limit, offset int) ([]models.Item, error) {
	query := `SELECT ` + itemColumns("i") + `
		FROM items i
		JOIN memberships m ON m.item_id = i.id
		WHERE m.collection_id = ?`
	if !includeDeleted {
		query += ` AND m.removed_at IS NULL AND i.is_deleted = 0`
	}
	query += ` ORDER BY COALESCE(m.fav_time, m.first_seen) DESC, i.id DESC`

	args := []any{collectionID}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer closeWithLog(rows, "item rows")

	var out []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// ItemByShortCode returns an item by short code, or ErrNotFound.
func (s *Store) ItemByShortCode(ctx context.Context, shortCode string) (*models.Item, error) {
	return itemByShortCode(ctx, s.db, shortCode)
}

// CountOfficialItems returns how many live items are officially produced works.
func (s *Store) CountOfficialItems(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE is_official = 1 AND is_deleted = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count official items: %w", err)
	}
	return n, nil
}

// StatsHistory returns an item's statistics snapshots, newest first.
func (s *Store) StatsHistory(ctx context.Context, itemID int64, limit int) ([]models.ItemStats, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, collect_count, play_count, danmaku_count, reply_count, view_text, vt, play_switch, recorded_at
		FROM item_stats WHERE item_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer closeWithLog(rows, "stats rows")

	var out []models.ItemStats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// DeletionLogs returns deletion records, newest first.
func (s *Store) DeletionLogs(ctx context.Context, limit int) ([]models.DeletionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection_remote_id, collection_title, short_code, title, uploader_name, reason, deleted_at
		FROM deletion_log ORDER BY deleted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deletion log: %w", err)
	}
	defer closeWithLog(rows, "deletion rows")

	var out []models.DeletionRecord
	for rows.Next() {
		var rec models.DeletionRecord
		var deletedAt int64
		if err := rows.Scan(&rec.ID, &rec.CollectionRemoteID, &rec.CollectionTitle, &rec.ShortCode,
			&rec.Title, &rec.UploaderName, &rec.Reason, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deletion record: %w", err)
		}
		rec.DeletedAt = fromMillis(deletedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ActiveMemberships returns the memberships of an item that are still present.
func (s *Store) ActiveMemberships(ctx context.Context, itemID int64) ([]models.Membership, error) {
	return queryMemberships(ctx, s.db, `
		SELECT id, collection_id, item_id, fav_time, first_seen, last_seen, removed_at
		FROM memberships WHERE item_id = ? AND removed_at IS NULL ORDER BY id`, itemID)
}

// Memberships returns all memberships of an item including removed ones.
func (s *Store) Memberships(ctx context.Context, itemID int64) ([]models.Membership, error) {
	return queryMemberships(ctx, s.db, `
		SELECT id, collection_id, item_id, fav_time, first_seen, last_seen, removed_at
		FROM memberships WHERE item_id = ? ORDER BY id`, itemID)
}

// Counts reports table sizes for status output.
type Counts struct {
	Collections int `json:"collections"`
	Items       int `json:"items"`
	Deleted     int `json:"deleted"`
	Official    int `json:"official"`
	Deletions   int `json:"deletion_log"`
}

// Counts returns row counts of the main tables.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM collections),
			(SELECT COUNT(*) FROM items),
			(SELECT COUNT(*) FROM items WHERE is_deleted = 1),
			(SELECT COUNT(*) FROM items WHERE is_official = 1 AND is_deleted = 0),
			(SELECT COUNT(*) FROM deletion_log)`).
		Scan(&c.Collections, &c.Items, &c.Deleted, &c.Official, &c.Deletions)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count rows: %w", err)
	}
	return c, nil
}
