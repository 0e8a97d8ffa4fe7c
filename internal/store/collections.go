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
	"time"

	"github.com/tomtom215/favmirror/internal/models"
)

const collectionColumns = `id, remote_id, title, owner_id, description, cover_url, media_count, last_synced, created_at, updated_at`

func scanCollection(row rowScanner) (*models.Collection, error) {
	var (
		c                    models.Collection
		lastSynced           sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.RemoteID, &c.Title, &c.OwnerID, &c.Description, &c.CoverURL,
		&c.MediaCount, &lastSynced, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.LastSynced = timePtr(lastSynced)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

// UpsertCollection inserts or refreshes a collection and returns its row id.
// last_synced is only changed by SetCollectionSynced.
func (t *Tx) UpsertCollection(ctx context.Context, c *models.Collection, at time.Time) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO collections (remote_id, title, owner_id, description, cover_url, media_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(remote_id) DO UPDATE SET
			title = excluded.title,
			owner_id = excluded.owner_id,
			description = excluded.description,
			cover_url = excluded.cover_url,
			media_count = excluded.media_count,
			updated_at = excluded.updated_at
		RETURNING id`,
		c.RemoteID, c.Title, c.OwnerID, c.Description, c.CoverURL, c.MediaCount, toMillis(at), toMillis(at),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert collection %s: %w", c.RemoteID, err)
	}
	return id, nil
}

// SetCollectionSynced records a completed sync of a collection.
func (t *Tx) SetCollectionSynced(ctx context.Context, id int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE collections SET last_synced = ?, updated_at = ? WHERE id = ?`,
		toMillis(at), toMillis(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark collection %d synced: %w", id, err)
	}
	return nil
}

// TouchMembership records that an item was seen in a collection at seenAt.
// It creates the membership when missing and reactivates a removed one. The
// result is true when the item is new to the collection (inserted or
// reactivated).
func (t *Tx) TouchMembership(ctx context.Context, collectionID, itemID int64, favTime *time.Time, seenAt time.Time) (bool, error) {
	var (
		id        int64
		removedAt sql.NullInt64
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, removed_at FROM memberships WHERE collection_id = ? AND item_id = ?`,
		collectionID, itemID).Scan(&id, &removedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		seen := toMillis(seenAt)
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO memberships (collection_id, item_id, fav_time, first_seen, last_seen, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			collectionID, itemID, nullMillis(favTime), seen, seen, seen, seen); err != nil {
			return false, fmt.Errorf("failed to insert membership: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("failed to load membership: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, `
		UPDATE memberships SET
			fav_time = COALESCE(?, fav_time),
			last_seen = ?,
			removed_at = NULL,
			updated_at = ?
		WHERE id = ?`,
		nullMillis(favTime), toMillis(seenAt), toMillis(seenAt), id); err != nil {
		return false, fmt.Errorf("failed to refresh membership %d: %w", id, err)
	}
	return removedAt.Valid, nil
}

// StaleMemberships returns active memberships of a collection last seen
// before the cutoff.
func (t *Tx) StaleMemberships(ctx context.Context, collectionID int64, before time.Time) ([]models.Membership, error) {
	return queryMemberships(ctx, t.tx, `
		SELECT id, collection_id, item_id, fav_time, first_seen, last_seen, removed_at
		FROM memberships
		WHERE collection_id = ? AND last_seen < ? AND removed_at IS NULL
		ORDER BY id`, collectionID, toMillis(before))
}

// RemoveMembership marks a membership as no longer present remotely.
func (t *Tx) RemoveMembership(ctx context.Context, id int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE memberships SET removed_at = ?, updated_at = ? WHERE id = ? AND removed_at IS NULL`,
		toMillis(at), toMillis(at), id)
	if err != nil {
		return fmt.Errorf("failed to remove membership %d: %w", id, err)
	}
	return nil
}

// CountActiveMemberships returns how many collections still hold an item.
func (t *Tx) CountActiveMemberships(ctx context.Context, itemID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE item_id = ? AND removed_at IS NULL`, itemID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count memberships of item %d: %w", itemID, err)
	}
	return n, nil
}

// ItemByID returns an item by row id, or ErrNotFound.
func (t *Tx) ItemByID(ctx context.Context, id int64) (*models.Item, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+itemColumns("")+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item %d: %w", id, err)
	}
	return it, nil
}

func queryMemberships(ctx context.Context, q querier, query string, args ...any) ([]models.Membership, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer closeWithLog(rows, "membership rows")

	var out []models.Membership
	for rows.Next() {
		var (
			m                   models.Membership
			favTime, removedAt  sql.NullInt64
			firstSeen, lastSeen int64
		)
		if err := rows.Scan(&m.ID, &m.CollectionID, &m.ItemID, &favTime, &firstSeen, &lastSeen, &removedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.FavTime = timePtr(favTime)
		m.FirstSeen = fromMillis(firstSeen)
		m.LastSeen = fromMillis(lastSeen)
		m.RemovedAt = timePtr(removedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}
