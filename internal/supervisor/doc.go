// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

/*
Package supervisor supervises serve mode with suture v4.

The tree isolates the scheduler from the HTTP API:

	RootSupervisor ("favmirror")
	├── SyncSupervisor ("sync-layer")
	│   └── SyncService (sync.Manager)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed service is restarted with backoff once FailureThreshold failures
accumulate (decaying at FailureDecay per second). Cancelling the context
passed to Serve shuts the tree down; services that do not return within
ShutdownTimeout are listed by UnstoppedServiceReport.

Supervisor events are logged through sutureslog, fed by the zerolog-backed
slog adapter in internal/logging:

	tree, _ := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(services.NewSyncService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, timeout))
	err := tree.Serve(ctx)
*/
package supervisor
