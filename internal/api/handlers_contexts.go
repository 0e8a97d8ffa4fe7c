// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/favmirror/internal/syncctx"
)

// ListContexts returns sync contexts newest first. ?status= accepts any
// stored status or "interrupted".
func (h *Handler) ListContexts(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	limit, ok := intParam(r, "limit", 50)
	if !ok {
		invalidParam(w, r, "limit")
		return
	}
	req := ContextsRequest{Status: r.URL.Query().Get("status"), Limit: limit}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	filter := syncctx.Filter{
		CollectionID: r.URL.Query().Get("collection_id"),
		Limit:        req.Limit,
	}
	if req.Status != "" {
		filter.Statuses = []syncctx.Status{syncctx.Status(req.Status)}
	}

	views, err := h.contexts.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Failed to list sync contexts", err)
		return
	}
	respondSuccess(w, http.StatusOK, views, started)
}

// CleanContext abandons an interrupted or failed context.
func (h *Handler) CleanContext(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := chi.URLParam(r, "id")

	c, err := h.contexts.Clean(r.Context(), id)
	switch {
	case err == nil:
		respondSuccess(w, http.StatusOK, c, started)
	case errors.Is(err, syncctx.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Sync context not found", nil)
	case errors.Is(err, syncctx.ErrContextLive):
		respondError(w, r, http.StatusConflict, ErrCodeContextLive, "Sync context is owned by a live run", nil)
	case errors.Is(err, syncctx.ErrInvalidTransition):
		respondError(w, r, http.StatusConflict, ErrCodeInvalidTransition, err.Error(), nil)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Failed to clean sync context", err)
	}
}
