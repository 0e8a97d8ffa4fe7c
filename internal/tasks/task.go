// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

// Package tasks keeps a persisted queue of requested sync runs.
//
// A task is a request to sync one or all collections. The queue executes
// pending tasks one at a time through the sync manager, ordered by priority
// and then by age, and records each outcome on the task.
//
// State machine:
//
//	pending -> running -> completed
//	                   -> failed    -> (retry) pending
//	                   -> cancelled -> (retry) pending
//	                   -> pending   (requeued: busy manager, shutdown or automatic retry)
//	pending -> cancelled
//
// A task left running by a stopped process is requeued on the next start.
// The run it started resumes through its sync contexts.
package tasks

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/favmirror/internal/models"
	favsync "github.com/tomtom215/favmirror/internal/sync"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the task has finished for good unless retried.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Kind is the type of work a task requests.
type Kind string

// KindSync is a favorites sync over one or all collections.
const KindSync Kind = "sync_favorites"

// Error codes recorded on failed tasks.
const (
	CodeSyncError          = "SYNC_ERROR"
	CodeSourceUnavailable  = "SOURCE_UNAVAILABLE"
	CodeCollectionNotFound = "COLLECTION_NOT_FOUND"
	CodeInterrupted        = "INTERRUPTED"
)

var (
	// ErrNotFound is returned when a task does not exist.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned for a state change the machine does not allow.
	ErrInvalidTransition = errors.New("invalid task transition")

	// ErrRunningElsewhere is returned when cancelling a running task that this
	// process is not executing.
	ErrRunningElsewhere = errors.New("task is running in another process")
)

// Request describes a task to submit.
type Request struct {
	CollectionID string `json:"collection_id,omitempty" validate:"omitempty,remoteid"`
	ForceCovers  bool   `json:"force_covers"`
	Priority     int    `json:"priority" validate:"gte=-100,lte=100"`
}

// Task is a persisted request for a sync run and its outcome.
type Task struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Title  string `json:"title"`
	Status Status `json:"status"`

	CollectionID string `json:"collection_id,omitempty"`
	ForceCovers  bool   `json:"force_covers"`

	// Priority orders pending tasks, higher first.
	Priority   int `json:"priority"`
	MaxRetries int `json:"max_retries"`
	RetryCount int `json:"retry_count"`

	// NotBefore delays a pending automatic retry.
	NotBefore *time.Time `json:"not_before,omitempty"`

	Summary   *models.RunSummary `json:"summary,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorCode string             `json:"error_code,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New creates a pending sync task.
func New(req Request, maxRetries int, now time.Time) *Task {
	title := "Sync all collections"
	if req.CollectionID != "" {
		title = "Sync collection " + req.CollectionID
	}
	return &Task{
		ID:           uuid.New().String(),
		Kind:         KindSync,
		Title:        title,
		Status:       StatusPending,
		CollectionID: req.CollectionID,
		ForceCovers:  req.ForceCovers,
		Priority:     req.Priority,
		MaxRetries:   maxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Scope is the sync scope the task requests.
func (t *Task) Scope() favsync.Scope {
	return favsync.Scope{CollectionID: t.CollectionID}
}

// Options are the run options the task requests.
func (t *Task) Options() favsync.Options {
	return favsync.Options{ForceCovers: t.ForceCovers}
}

// Due reports whether a pending task may start at now.
func (t *Task) Due(now time.Time) bool {
	return t.Status == StatusPending && (t.NotBefore == nil || !t.NotBefore.After(now))
}

func (t *Task) transitionErr(to Status) error {
	return fmt.Errorf("%w: %s -> %s (task %s)", ErrInvalidTransition, t.Status, to, t.ID)
}

// Start moves a pending task to running.
func (t *Task) Start(now time.Time) error {
	if t.Status != StatusPending {
		return t.transitionErr(StatusRunning)
	}
	t.Status = StatusRunning
	started := now
	t.StartedAt = &started
	t.NotBefore = nil
	t.UpdatedAt = now
	return nil
}

// Complete records a successful run.
func (t *Task) Complete(summary *models.RunSummary, now time.Time) error {
	if t.Status != StatusRunning {
		return t.transitionErr(StatusCompleted)
	}
	t.Status = StatusCompleted
	t.Summary = summary
	t.Error, t.ErrorCode = "", ""
	t.finish(now)
	return nil
}

// Fail records a failed run.
func (t *Task) Fail(cause error, code string, summary *models.RunSummary, now time.Time) error {
	if t.Status != StatusRunning {
		return t.transitionErr(StatusFailed)
	}
	t.Status = StatusFailed
	t.Summary = summary
	t.ErrorCode = code
	if cause != nil {
		t.Error = cause.Error()
	}
	t.finish(now)
	return nil
}

// Cancel stops a pending task, or records that a running one was cancelled.
func (t *Task) Cancel(now time.Time) error {
	if t.Status != StatusPending && t.Status != StatusRunning {
		return t.transitionErr(StatusCancelled)
	}
	t.Status = StatusCancelled
	t.NotBefore = nil
	t.finish(now)
	return nil
}

// Requeue returns a running task to pending. notBefore may be nil to make it
// due at once.
func (t *Task) Requeue(notBefore *time.Time, now time.Time) error {
	if t.Status != StatusRunning {
		return t.transitionErr(StatusPending)
	}
	t.Status = StatusPending
	t.StartedAt = nil
	t.NotBefore = notBefore
	t.UpdatedAt = now
	return nil
}

// Retry puts a failed or cancelled task back in the queue.
func (t *Task) Retry(now time.Time) error {
	if t.Status != StatusFailed && t.Status != StatusCancelled {
		return t.transitionErr(StatusPending)
	}
	t.Status = StatusPending
	t.RetryCount++
	t.StartedAt = nil
	t.CompletedAt = nil
	t.NotBefore = nil
	t.Summary = nil
	t.Error, t.ErrorCode = "", ""
	t.UpdatedAt = now
	return nil
}

func (t *Task) finish(now time.Time) {
	done := now
	t.CompletedAt = &done
	t.UpdatedAt = now
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	cp := *t
	if t.NotBefore != nil {
		nb := *t.NotBefore
		cp.NotBefore = &nb
	}
	if t.StartedAt != nil {
		s := *t.StartedAt
		cp.StartedAt = &s
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		cp.CompletedAt = &c
	}
	if t.Summary != nil {
		sum := *t.Summary
		cp.Summary = &sum
	}
	return &cp
}
