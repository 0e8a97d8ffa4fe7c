// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

/*
Package models defines the entities mirrored from the remote platform and the
summaries produced by sync runs.

Entities:

  - Collection: a remote favorites folder
  - Item: a media entry, unique by short code, with a global deleted flag
  - Uploader: the account that published an item
  - Membership: the Collection x Item link with first/last seen timestamps
  - ItemStats: append-only counter snapshots
  - DeletionRecord: append-only audit entry written when an item is flagged deleted

Run results:

  - CollectionResult: counters for one collection within a run
  - RunSummary: totals for one engine invocation

Opaque remote payloads (season info, official-work info) are kept as
json.RawMessage and only inspected for presence.
*/
package models
