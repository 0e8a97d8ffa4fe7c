// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package api

// Error codes used in APIError.Code.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeSyncBusy          = "SYNC_BUSY"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeContextLive       = "CONTEXT_LIVE"
	ErrCodeTaskRunning       = "TASK_RUNNING_ELSEWHERE"
	ErrCodeDatabase          = "DATABASE_ERROR"
	ErrCodeUnavailable       = "SERVICE_UNAVAILABLE"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
)
