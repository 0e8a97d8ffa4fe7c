// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

// Package main is the favmirror command line.
//
// favmirror keeps a local SQLite mirror of a remote account's favorites
// folders. Each run pages through every folder, records additions and
// changes, caches covers and logs deletions once an item is absent from
// every folder that held it.
//
// # Commands
//
//	favmirror serve                  scheduler and HTTP API under a supervisor tree
//	favmirror sync [--collection ID] one run, then exit
//	favmirror status                 schema, row counts and recent sync contexts
//	favmirror contexts list|clean|resume|prune
//	favmirror migrate [--status]
//
// # Configuration
//
// Configuration is loaded via Koanf v2 (highest priority wins):
//   - Environment variables (BILIBILI_UID, BILIBILI_COOKIE, DATABASE_PATH, ...)
//   - Config file (--config, CONFIG_PATH or config.yaml)
//   - Built-in defaults
//
// # Supervision
//
// serve runs under a Suture v4 tree:
//
//	RootSupervisor ("favmirror")
//	├── "sync-layer"
//	│   └── sync-manager (cron schedule, one run at a time)
//	└── "api-layer"
//	    └── http-server
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the scheduler and cancel an in-flight run
// cooperatively. The current page is committed and the sync context is left
// in-progress, so the next run resumes from its checkpoint.
package main

import (
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
