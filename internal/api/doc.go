// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

/*
Package api serves the favmirror HTTP API with the chi router.

The API is a thin read surface over the mirror plus a sync trigger:

	GET  /api/v1/health                    store and scheduler health
	POST /api/v1/sync                      start a run (202, or 409 when busy)
	GET  /api/v1/sync/last                 summary of the last run
	GET  /api/v1/contexts                  sync contexts, ?status= filter
	POST /api/v1/contexts/{id}/clean       abandon a context
	GET  /api/v1/collections               mirrored collections
	GET  /api/v1/collections/{id}/items    items, ?include_deleted=&limit=&offset=
	GET  /api/v1/deletions                 deletion log, ?limit=
	GET  /metrics                          Prometheus exposition

Every JSON response uses the models.APIResponse envelope with status
"success" or "error". Error codes are listed in handlers_helpers.go.

Middleware order: request id with logging context, RealIP, Recoverer, CORS,
then per-route rate limiting (httprate, by IP) and request metrics on
/api/v1.
*/
package api
