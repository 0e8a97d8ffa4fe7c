// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package store

// All timestamps are INTEGER Unix milliseconds. JSON blobs are TEXT.

// schemaMigrationsTable creates the migration history table.
const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at INTEGER NOT NULL
)`

// schemaV1 is the original layout, where the deletion flag lives on each
// membership rather than on the item.
var schemaV1 = []string{
	`CREATE TABLE uploaders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		jump_link TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		owner_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		cover_url TEXT NOT NULL DEFAULT '',
		media_count INTEGER NOT NULL DEFAULT 0,
		last_synced INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT NOT NULL DEFAULT '',
		short_code TEXT NOT NULL UNIQUE,
		kind INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT '',
		cover_url TEXT NOT NULL DEFAULT '',
		local_cover_path TEXT NOT NULL DEFAULT '',
		intro TEXT NOT NULL DEFAULT '',
		page_count INTEGER NOT NULL DEFAULT 0,
		duration INTEGER NOT NULL DEFAULT 0,
		uploader_id TEXT NOT NULL DEFAULT '',
		attr INTEGER NOT NULL DEFAULT 0,
		ctime INTEGER,
		pubtime INTEGER,
		first_cid TEXT NOT NULL DEFAULT '',
		season_info TEXT,
		official_info TEXT,
		link TEXT NOT NULL DEFAULT '',
		media_list_link TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE memberships (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		fav_time INTEGER,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		deleted_at INTEGER,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(collection_id, item_id)
	)`,
	`CREATE TABLE item_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		collect_count INTEGER NOT NULL DEFAULT 0,
		play_count INTEGER NOT NULL DEFAULT 0,
		danmaku_count INTEGER NOT NULL DEFAULT 0,
		reply_count INTEGER NOT NULL DEFAULT 0,
		view_text TEXT NOT NULL DEFAULT '',
		vt INTEGER NOT NULL DEFAULT 0,
		play_switch INTEGER NOT NULL DEFAULT 0,
		recorded_at INTEGER NOT NULL
	)`,
	// Deletion records outlive the rows they describe, so no foreign keys.
	`CREATE TABLE deletion_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection_remote_id TEXT NOT NULL DEFAULT '',
		collection_title TEXT NOT NULL DEFAULT '',
		short_code TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		uploader_name TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL,
		deleted_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX idx_items_uploader ON items(uploader_id)`,
	`CREATE INDEX idx_memberships_item ON memberships(item_id)`,
	`CREATE INDEX idx_item_stats_item ON item_stats(item_id, recorded_at)`,
	`CREATE INDEX idx_deletion_log_deleted_at ON deletion_log(deleted_at)`,
}

// schemaV2 moves the deletion flag from memberships to items. An item is
// deleted when any of its memberships was; its deleted_at is the earliest
// membership deletion. Memberships are rebuilt with removed_at, which marks a
// per-collection removal without implying global deletion.
var schemaV2 = []string{
	`ALTER TABLE items ADD COLUMN is_deleted INTEGER NOT NULL DEFAULT 0`,
	`ALTER TABLE items ADD COLUMN deleted_at INTEGER`,
	`UPDATE items SET
		is_deleted = 1,
		deleted_at = (
			SELECT COALESCE(MIN(m.deleted_at), MAX(m.last_seen))
			FROM memberships m
			WHERE m.item_id = items.id AND m.is_deleted = 1
		)
	WHERE EXISTS (
		SELECT 1 FROM memberships m WHERE m.item_id = items.id AND m.is_deleted = 1
	)`,
	`CREATE TABLE memberships_v2 (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		fav_time INTEGER,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		removed_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(collection_id, item_id)
	)`,
	`INSERT INTO memberships_v2
		(id, collection_id, item_id, fav_time, first_seen, last_seen, removed_at, created_at, updated_at)
	SELECT id, collection_id, item_id, fav_time, first_seen, last_seen,
		CASE WHEN is_deleted = 1 THEN COALESCE(deleted_at, last_seen) END,
		created_at, updated_at
	FROM memberships`,
	`DROP TABLE memberships`,
	`ALTER TABLE memberships_v2 RENAME TO memberships`,
	`CREATE INDEX idx_memberships_item ON memberships(item_id)`,
	`CREATE INDEX idx_items_deleted ON items(is_deleted)`,
}

// schemaV3 persists sync contexts next to the data they describe. The full
// context is kept as JSON; the scalar columns exist for lookups.
var schemaV3 = []string{
	`CREATE TABLE sync_contexts (
		id TEXT PRIMARY KEY,
		collection_id TEXT NOT NULL,
		status TEXT NOT NULL,
		owner_id TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		heartbeat_at INTEGER,
		data TEXT NOT NULL
	)`,
	`CREATE INDEX idx_sync_contexts_collection ON sync_contexts(collection_id, status, started_at)`,
	`CREATE INDEX idx_sync_contexts_updated ON sync_contexts(status, updated_at)`,
}

// schemaV4 materialises the official-work classification and indexes the
// stale-membership scan of deletion detection.
var schemaV4 = []string{
	`ALTER TABLE items ADD COLUMN is_official INTEGER NOT NULL DEFAULT 0`,
	`UPDATE items SET is_official = CASE
		WHEN official_info IS NOT NULL AND TRIM(official_info) NOT IN ('', 'null', '{}', '[]', '""') THEN 1
		ELSE 0
	END`,
	`CREATE INDEX idx_memberships_last_seen ON memberships(collection_id, last_seen)`,
}

// schemaV5 persists the sync task queue. The full task is kept as JSON; the
// scalar columns order and filter the queue.
var schemaV5 = []string{
	`CREATE TABLE tasks (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		not_before INTEGER,
		data TEXT NOT NULL
	)`,
	`CREATE INDEX idx_tasks_pending ON tasks(status, priority DESC, created_at)`,
	`CREATE INDEX idx_tasks_updated ON tasks(status, updated_at)`,
}
