// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/favmirror/internal/models"
)

// Health reports store connectivity, schema state and scheduler state.
// The status is "degraded" (still 200) when the store is unreachable or
// behind the expected schema version.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx := r.Context()

	health := models.HealthStatus{
		Status:  "healthy",
		Version: h.version,
		Uptime:  time.Since(h.startTime).Seconds(),
	}

	health.DatabaseConnected = h.store.Ping(ctx) == nil
	if health.DatabaseConnected {
		if v, err := h.store.SchemaVersion(ctx); err == nil {
			health.SchemaVersion = v
		}
		health.SchemaCurrent = h.store.EnsureCurrent(ctx) == nil
	}
	if !health.DatabaseConnected || !health.SchemaCurrent {
		health.Status = "degraded"
	}

	if h.sync != nil {
		health.SyncRunning = h.sync.IsRunning()
		if last := h.sync.LastSyncTime(); !last.IsZero() {
			health.LastSyncTime = &last
		}
	}

	respondSuccess(w, http.StatusOK, health, started)
}
