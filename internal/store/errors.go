// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package store

import (
	"errors"
	"io"

	"github.com/tomtom215/favmirror/internal/logging"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSchemaNotCurrent is returned when the store is behind the schema
	// version this build expects. Run the migrator first.
	ErrSchemaNotCurrent = errors.New("schema is not at the expected version")

	// ErrMigrationFailed wraps the failure of a migration step. The store is
	// left at the last successfully applied version.
	ErrMigrationFailed = errors.New("schema migration failed")
)

// closeWithLog closes a resource and logs a failure.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this for cleanup in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
