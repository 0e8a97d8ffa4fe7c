// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

/*
Package sync implements the incremental mirror engine and its scheduler.

A run walks one or all remote collections. For each collection it opens or
resumes a Sync Context, pages through the remote listing, reconciles every
page against the local store in one transaction, downloads missing covers,
and checkpoints the context. When the whole listing was seen, memberships not
refreshed during the pass are removed, and items no longer held by any
collection are flagged deleted and logged.

Error policy:
  - item-level (detail, cover, reported gone): recorded, processing continues
  - page-level (transient listing failure): page skipped, checkpoint advances,
    deletion detection suppressed for the pass
  - run-level (store failure, source unavailable, schema not current, unknown
    collection): the run aborts and the error is returned

Cancellation is cooperative. It is observed between collections and between
pages; a page whose listing was fetched is always finished. A cancelled
collection's context stays in-progress with its heartbeat released, so the
next run resumes it at once.

Manager wraps an Engine with a cron schedule and a single-run guard for the
CLI and HTTP surfaces.
*/
package sync
