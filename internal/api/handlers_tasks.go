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

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/favmirror/internal/logging"
	"github.com/tomtom215/favmirror/internal/tasks"
)

func (h *Handler) requireTasks(w http.ResponseWriter, r *http.Request) bool {
	if h.tasks == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "Task queue is not available", nil)
		return false
	}
	return true
}

// respondTaskError maps queue errors to HTTP statuses.
func respondTaskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Task not found", nil)
	case errors.Is(err, tasks.ErrInvalidTransition):
		respondError(w, r, http.StatusConflict, ErrCodeInvalidTransition, err.Error(), nil)
	case errors.Is(err, tasks.ErrRunningElsewhere):
		respondError(w, r, http.StatusConflict, ErrCodeTaskRunning, "Task is running in another process", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Task operation failed", err)
	}
}

// SubmitTask queues a sync task. An empty body queues a sync of every
// collection at priority 0.
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if !h.requireTasks(w, r) {
		return
	}

	var req tasks.Request
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

	task, err := h.tasks.Submit(r.Context(), req)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Task could not be queued", err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("task_id", task.ID).Msg("Sync task queued via API")
	respondSuccess(w, http.StatusAccepted, task, started)
}

// ListTasks returns tasks newest first, optionally filtered by ?status=.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if !h.requireTasks(w, r) {
		return
	}
	limit, ok := intParam(r, "limit", 50)
	if !ok {
		invalidParam(w, r, "limit")
		return
	}
	req := TasksRequest{Status: r.URL.Query().Get("status"), Limit: limit}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	filter := tasks.Filter{Limit: req.Limit}
	if req.Status != "" {
		filter.Statuses = []tasks.Status{tasks.Status(req.Status)}
	}
	list, err := h.tasks.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Failed to list tasks", err)
		return
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	respondSuccess(w, http.StatusOK, list, started)
}

// GetTask returns one task.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if !h.requireTasks(w, r) {
		return
	}
	task, err := h.tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondTaskError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, task, started)
}

// CancelTask cancels a pending task or the task this process is running.
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if !h.requireTasks(w, r) {
		return
	}
	task, err := h.tasks.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondTaskError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, task, started)
}

// RetryTask puts a failed or cancelled task back in the queue.
func (h *Handler) RetryTask(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if !h.requireTasks(w, r) {
		return
	}
	task, err := h.tasks.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondTaskError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, task, started)
}
