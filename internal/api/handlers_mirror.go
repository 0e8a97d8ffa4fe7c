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

	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/store"
)

// ItemsPage is one page of a collection's items.
type ItemsPage struct {
	Collection *models.Collection    `json:"collection"`
	Items      []models.Item         `json:"items"`
	Pagination models.PaginationInfo `json:"pagination"`
}

// Collections lists mirrored collections.
func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	cols, err := h.store.ListCollections(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Failed to list collections", err)
		return
	}
	if cols == nil {
		cols = []models.Collection{}
	}
	respondSuccess(w, http.StatusOK, cols, started)
}

// CollectionItems lists the items of one collection by remote id.
func (h *Handler) CollectionItems(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	limit, ok := intParam(r, "limit", 100)
	if !ok {
		invalidParam(w, r, "limit")
		return
	}
	offset, ok := intParam(r, "offset", 0)
	if !ok {
		invalidParam(w, r, "offset")
		return
	}
	includeDeleted, ok := boolParam(r, "include_deleted")
	if !ok {
		invalidParam(w, r, "include_deleted")
		return
	}

	req := ItemsRequest{
		CollectionID:   chi.URLParam(r, "id"),
		IncludeDeleted: includeDeleted,
		Limit:          limit,
		Offset:         offset,
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	col, err := h.store.CollectionByRemoteID(r.Context(), req.CollectionID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Collection not found", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Failed to load collection", err)
		return
	}

	// One extra row tells whether another page exists.
	items, err := h.store.ListItems(r.Context(), col.ID, req.IncludeDeleted, req.Limit+1, req.Offset)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Failed to list items", err)
		return
	}
	hasMore := len(items) > req.Limit
	if hasMore {
		items = items[:req.Limit]
	}
	if items == nil {
		items = []models.Item{}
	}

	respondSuccess(w, http.StatusOK, ItemsPage{
		Collection: col,
		Items:      items,
		Pagination: models.PaginationInfo{Limit: req.Limit, Offset: req.Offset, HasMore: hasMore},
	}, started)
}

// Deletions returns the deletion log, newest first.
func (h *Handler) Deletions(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	limit, ok := intParam(r, "limit", 100)
	if !ok {
		invalidParam(w, r, "limit")
		return
	}
	req := DeletionsRequest{Limit: limit}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	logs, err := h.store.DeletionLogs(r.Context(), req.Limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Failed to load deletion log", err)
		return
	}
	if logs == nil {
		logs = []models.DeletionRecord{}
	}
	respondSuccess(w, http.StatusOK, logs, started)
}
