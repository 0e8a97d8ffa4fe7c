// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/favmirror/internal/logging"
	favsync "github.com/tomtom215/favmirror/internal/sync"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 64 << 10

// TriggerSyncResponse acknowledges an accepted run.
type TriggerSyncResponse struct {
	Scope       string `json:"scope"`
	ForceCovers bool   `json:"force_covers"`
	Message     string `json:"message"`
}

// TriggerSync starts a background run. It answers 202 when the run was
// started and 409 when another run is active.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if h.sync == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "Sync scheduler is not running", nil)
		return
	}

	var req TriggerSyncRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Request body could not be read", nil)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Request body must be a JSON object", nil)
			return
		}
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	scope := favsync.Scope{CollectionID: req.CollectionID}
	opts := favsync.Options{ForceCovers: req.ForceCovers}
	if err := h.sync.TriggerAsync(scope, opts); err != nil {
		if errors.Is(err, favsync.ErrSyncBusy) {
			respondError(w, r, http.StatusConflict, ErrCodeSyncBusy, "A sync run is already in progress", nil)
			return
		}
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "Sync could not be started", err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("scope", scope.String()).Bool("force_covers", opts.ForceCovers).Msg("Sync triggered via API")
	respondSuccess(w, http.StatusAccepted, TriggerSyncResponse{
		Scope:       scope.String(),
		ForceCovers: opts.ForceCovers,
		Message:     "sync started",
	}, started)
}

// LastRunResponse is the last run summary with its error, if any.
type LastRunResponse struct {
	Running bool        `json:"running"`
	Summary interface{} `json:"summary"`
	Error   string      `json:"error,omitempty"`
}

// LastRun returns the summary of the most recent run. 404 before the first run.
func (h *Handler) LastRun(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if h.sync == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "Sync scheduler is not running", nil)
		return
	}

	summary, runErr := h.sync.LastRun()
	if summary == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "No sync run has finished yet", nil)
		return
	}
	resp := LastRunResponse{Running: h.sync.IsRunning(), Summary: summary}
	if runErr != nil {
		resp.Error = runErr.Error()
	}
	respondSuccess(w, http.StatusOK, resp, started)
}
