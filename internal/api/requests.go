// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package api

// TriggerSyncRequest is the body of POST /api/v1/sync. An empty body syncs
// every collection.
type TriggerSyncRequest struct {
	CollectionID string `json:"collection_id" validate:"omitempty,remoteid"`
	ForceCovers  bool   `json:"force_covers"`
}

// ItemsRequest holds the query of the collection items endpoint.
type ItemsRequest struct {
	CollectionID   string `validate:"required,remoteid"`
	IncludeDeleted bool
	Limit          int `validate:"min=1,max=500"`
	Offset         int `validate:"min=0"`
}

// DeletionsRequest holds the query of the deletion log endpoint.
type DeletionsRequest struct {
	Limit int `validate:"min=1,max=1000"`
}

// ContextsRequest holds the query of the contexts endpoint.
type ContextsRequest struct {
	Status string `validate:"omitempty,oneof=pending in-progress completed failed cleaned interrupted"`
	Limit  int    `validate:"min=1,max=500"`
}

// TasksRequest holds the query of the task list endpoint.
type TasksRequest struct {
	Status string `validate:"omitempty,oneof=pending running completed failed cancelled"`
	Limit  int    `validate:"min=1,max=500"`
}
