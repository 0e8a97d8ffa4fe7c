// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

/*
Package services adapts favmirror components to suture's Serve pattern.

	type Service interface {
	    Serve(ctx context.Context) error
	}

SyncService wraps the sync manager's Start/Stop lifecycle. HTTPServerService
wraps an *http.Server, turning ListenAndServe into a context-aware Serve with
a bounded graceful shutdown.

Each wrapper implements fmt.Stringer so suture log events name the service.
*/
package services
