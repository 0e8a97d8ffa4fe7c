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

	"github.com/tomtom215/favmirror/internal/models"
)

var itemColumnNames = []string{
	"id", "remote_id", "short_code", "kind", "title", "cover_url", "local_cover_path",
	"intro", "page_count", "duration", "uploader_id", "attr", "ctime", "pubtime",
	"first_cid", "season_info", "official_info", "link", "media_list_link",
	"is_deleted", "deleted_at", "created_at", "updated_at",
}

// itemColumns returns the item select list, optionally qualified by alias.
func itemColumns(alias string) string {
	if alias == "" {
		return strings.Join(itemColumnNames, ", ")
	}
	qualified := make([]string, len(itemColumnNames))
	for i, c := range itemColumnNames {
		qualified[i] = alias + "." + c
	}
	return strings.Join(qualified, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		it                   models.Item
		ctime, pubtime       sql.NullInt64
		season, official     sql.NullString
		deletedAt            sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&it.ID, &it.RemoteID, &it.ShortCode, &it.Kind, &it.Title, &it.CoverURL, &it.LocalCoverPath,
		&it.Intro, &it.PageCount, &it.Duration, &it.UploaderID, &it.Attr, &ctime, &pubtime,
		&it.FirstCID, &season, &official, &it.Link, &it.MediaListLink,
		&it.IsDeleted, &deletedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	it.CreatedAtSrc = timePtr(ctime)
	it.PublishedAt = timePtr(pubtime)
	if season.Valid {
		it.SeasonInfo = []byte(season.String)
	}
	if official.Valid {
		it.OfficialInfo = []byte(official.String)
	}
	it.DeletedAt = timePtr(deletedAt)
	it.CreatedAt = fromMillis(createdAt)
	it.UpdatedAt = fromMillis(updatedAt)
	return &it, nil
}

func itemByShortCode(ctx context.Context, q querier, shortCode string) (*models.Item, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+itemColumns("")+` FROM items WHERE short_code = ?`, shortCode)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item %s: %w", shortCode, err)
	}
	return it, nil
}

// ItemByShortCode returns the item with shortCode, or ErrNotFound.
func (t *Tx) ItemByShortCode(ctx context.Context, shortCode string) (*models.Item, error) {
	return itemByShortCode(ctx, t.tx, shortCode)
}

// InsertItem inserts a new item and returns its row id.
func (t *Tx) InsertItem(ctx context.Context, it *models.Item, at time.Time) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO items (
			remote_id, short_code, kind, title, cover_url, intro, page_count, duration,
			uploader_id, attr, ctime, pubtime, first_cid, season_info, official_info,
			link, media_list_link, is_official, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		it.RemoteID, it.ShortCode, it.Kind, it.Title, it.CoverURL, it.Intro, it.PageCount, it.Duration,
		it.UploaderID, it.Attr, nullMillis(it.CreatedAtSrc), nullMillis(it.PublishedAt), it.FirstCID,
		nullBlob(it.SeasonInfo), nullBlob(it.OfficialInfo),
		it.Link, it.MediaListLink, boolInt(it.IsOfficial()), toMillis(at), toMillis(at),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert item %s: %w", it.ShortCode, err)
	}
	return id, nil
}

// UpdateItem overwrites the remote-sourced fields of an existing item. The
// local cover path and the deletion flag are left alone.
func (t *Tx) UpdateItem(ctx context.Context, id int64, it *models.Item, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE items SET
			remote_id = ?, kind = ?, title = ?, cover_url = ?, intro = ?, page_count = ?,
			duration = ?, uploader_id = ?, attr = ?, ctime = ?, pubtime = ?, first_cid = ?,
			season_info = ?, official_info = ?, link = ?, media_list_link = ?,
			is_official = ?, updated_at = ?
		WHERE id = ?`,
		it.RemoteID, it.Kind, it.Title, it.CoverURL, it.Intro, it.PageCount,
		it.Duration, it.UploaderID, it.Attr, nullMillis(it.CreatedAtSrc), nullMillis(it.PublishedAt), it.FirstCID,
		nullBlob(it.SeasonInfo), nullBlob(it.OfficialInfo), it.Link, it.MediaListLink,
		boolInt(it.IsOfficial()), toMillis(at), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update item %s: %w", it.ShortCode, err)
	}
	return nil
}

// MarkItemDeleted sets the global deletion flag. It reports false when the
// item was already deleted, in which case nothing changes.
func (t *Tx) MarkItemDeleted(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE items SET is_deleted = 1, deleted_at = ?, updated_at = ? WHERE id = ? AND is_deleted = 0`,
		toMillis(at), toMillis(at), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark item %d deleted: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark item %d deleted: %w", id, err)
	}
	return n > 0, nil
}

// SetCoverPath records where an item's cover was cached.
func (t *Tx) SetCoverPath(ctx context.Context, id int64, path string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE items SET local_cover_path = ?, updated_at = ? WHERE id = ?`,
		path, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("failed to set cover path for item %d: %w", id, err)
	}
	return nil
}

// UpsertUploader inserts or refreshes an uploader and returns its row id.
func (t *Tx) UpsertUploader(ctx context.Context, u *models.Uploader, at time.Time) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO uploaders (remote_id, name, avatar_url, jump_link, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(remote_id) DO UPDATE SET
			name = excluded.name,
			avatar_url = excluded.avatar_url,
			jump_link = CASE WHEN excluded.jump_link != '' THEN excluded.jump_link ELSE uploaders.jump_link END,
			updated_at = excluded.updated_at
		RETURNING id`,
		u.RemoteID, u.Name, u.AvatarURL, u.JumpLink, toMillis(at), toMillis(at),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert uploader %s: %w", u.RemoteID, err)
	}
	return id, nil
}

// UploaderName returns the stored name of an uploader, or "" when unknown.
func (t *Tx) UploaderName(ctx context.Context, remoteID string) (string, error) {
	var name string
	err := t.tx.QueryRowContext(ctx, `SELECT name FROM uploaders WHERE remote_id = ?`, remoteID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load uploader %s: %w", remoteID, err)
	}
	return name, nil
}

// LatestStats returns the most recent statistics snapshot of an item, or nil.
func (t *Tx) LatestStats(ctx context.Context, itemID int64) (*models.ItemStats, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT item_id, collect_count, play_count, danmaku_count, reply_count, view_text, vt, play_switch, recorded_at
		FROM item_stats WHERE item_id = ? ORDER BY recorded_at DESC, id DESC LIMIT 1`, itemID)
	st, err := scanStats(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for item %d: %w", itemID, err)
	}
	return st, nil
}

// AppendStats appends a statistics snapshot.
func (t *Tx) AppendStats(ctx context.Context, st *models.ItemStats) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO item_stats (item_id, collect_count, play_count, danmaku_count, reply_count, view_text, vt, play_switch, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ItemID, st.Collect, st.Play, st.Danmaku, st.Reply, st.ViewText, st.VT, st.PlaySwitch, toMillis(st.RecordedAt))
	if err != nil {
		return fmt.Errorf("failed to append stats for item %d: %w", st.ItemID, err)
	}
	return nil
}

func scanStats(row rowScanner) (*models.ItemStats, error) {
	var st models.ItemStats
	var recorded int64
	if err := row.Scan(&st.ItemID, &st.Collect, &st.Play, &st.Danmaku, &st.Reply,
		&st.ViewText, &st.VT, &st.PlaySwitch, &recorded); err != nil {
		return nil, err
	}
	st.RecordedAt = fromMillis(recorded)
	return &st, nil
}

// AppendDeletionLog appends a deletion record and returns its id.
func (t *Tx) AppendDeletionLog(ctx context.Context, rec *models.DeletionRecord) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO deletion_log (collection_remote_id, collection_title, short_code, title, uploader_name, reason, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		rec.CollectionRemoteID, rec.CollectionTitle, rec.ShortCode, rec.Title, rec.UploaderName,
		rec.Reason, toMillis(rec.DeletedAt), toMillis(time.Now()),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to append deletion log for %s: %w", rec.ShortCode, err)
	}
	return id, nil
}
