// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

// Package syncctx models the persisted progress record of a sync run over
// one collection, its state machine, and the stores that persist it.
//
// State machine:
//
//	pending -> in-progress -> completed
//	                       -> failed -> (reopen) in-progress
//	in-progress | failed   -> cleaned
//
// "interrupted" is never written. It is how an in-progress context reads when
// its heartbeat is older than the liveness timeout (or was released).
package syncctx

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/favmirror/internal/models"
)

// Status is the lifecycle state of a Context.
type Status string

const (
	StatusPending     Status = "pending"
	StatusInProgress  Status = "in-progress"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCleaned     Status = "cleaned"
	StatusInterrupted Status = "interrupted"
)

// maxRecordedErrors bounds the persisted error list of one context.
const maxRecordedErrors = 500

var (
	// ErrNotFound is returned when a context does not exist.
	ErrNotFound = errors.New("sync context not found")

	// ErrInvalidTransition is returned for a state change the machine does not allow.
	ErrInvalidTransition = errors.New("invalid sync context transition")

	// ErrContextLive is returned when maintenance targets a context owned by a live run.
	ErrContextLive = errors.New("sync context is owned by a live run")

	// ErrConcurrentUpdate is returned by CompareAndSave when the stored
	// context changed since it was read.
	ErrConcurrentUpdate = errors.New("sync context changed concurrently")
)

// Revision identifies the stored version of a context by its owner and last update.
type Revision struct {
	OwnerID   string
	UpdatedAt time.Time
}

// Matches reports whether c is still at revision r.
func (r Revision) Matches(c *Context) bool {
	return c.OwnerID == r.OwnerID && c.UpdatedAt.Equal(r.UpdatedAt)
}

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCleaned
}

// Context is the progress record of one sync run over one collection.
type Context struct {
	ID              string `json:"id"`
	CollectionID    string `json:"collection_id"`
	CollectionTitle string `json:"collection_title"`

	// OwnerID is the run currently holding the context.
	OwnerID string `json:"owner_id"`
	Status  Status `json:"status"`

	// NextPage is the first listing page not yet handled.
	NextPage       int   `json:"next_page"`
	PagesProcessed int   `json:"pages_processed"`
	SkippedPages   []int `json:"skipped_pages,omitempty"`

	// Truncated is set when the page cap stopped a listing that had more pages.
	Truncated bool `json:"truncated"`

	// Exhausted is set once the last listing page was checkpointed. A resumed
	// context with Exhausted set pages nothing and goes on to deletion detection.
	Exhausted     bool `json:"exhausted,omitempty"`
	DeclaredCount int  `json:"declared_count"`
	SeenCount     int  `json:"seen_count"`

	Added            int `json:"added"`
	Updated          int `json:"updated"`
	Deleted          int `json:"deleted"`
	CoversDownloaded int `json:"covers_downloaded"`

	Errors        []string                 `json:"errors,omitempty"`
	DroppedErrors int                      `json:"dropped_errors,omitempty"`
	Deletions     []models.DeletionSummary `json:"deletions,omitempty"`
	LastError     string                   `json:"last_error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Revision returns the current revision of c.
func (c *Context) Revision() Revision {
	return Revision{OwnerID: c.OwnerID, UpdatedAt: c.UpdatedAt}
}

// New creates a pending context owned by ownerID.
func New(collectionID, title, ownerID string, now time.Time) *Context {
	hb := now
	return &Context{
		ID:              uuid.New().String(),
		CollectionID:    collectionID,
		CollectionTitle: title,
		OwnerID:         ownerID,
		Status:          StatusPending,
		NextPage:        1,
		StartedAt:       now,
		UpdatedAt:       now,
		HeartbeatAt:     &hb,
	}
}

func (c *Context) transitionErr(to Status) error {
	return fmt.Errorf("%w: %s -> %s (context %s)", ErrInvalidTransition, c.Status, to, c.ID)
}

// Begin moves a pending context to in-progress. It is a no-op when already in progress.
func (c *Context) Begin(now time.Time) error {
	switch c.Status {
	case StatusInProgress:
		return nil
	case StatusPending:
		c.Status = StatusInProgress
		c.touch(now)
		return nil
	default:
		return c.transitionErr(StatusInProgress)
	}
}

// Adopt hands a pending or in-progress context to a new owner, typically a
// run resuming after an interruption.
func (c *Context) Adopt(ownerID string, now time.Time) error {
	if c.Status != StatusPending && c.Status != StatusInProgress {
		return c.transitionErr(c.Status)
	}
	c.OwnerID = ownerID
	c.Heartbeat(now)
	return nil
}

// Heartbeat marks the owner as alive.
func (c *Context) Heartbeat(now time.Time) {
	hb := now
	c.HeartbeatAt = &hb
	c.UpdatedAt = now
}

// Release clears the heartbeat so another run may adopt the context at once.
func (c *Context) Release(now time.Time) {
	c.HeartbeatAt = nil
	c.UpdatedAt = now
}

func (c *Context) touch(now time.Time) {
	c.UpdatedAt = now
	if c.HeartbeatAt != nil {
		c.Heartbeat(now)
	}
}

// Checkpoint records that page was fully processed with seen entries.
func (c *Context) Checkpoint(page, seen int, now time.Time) {
	c.PagesProcessed++
	c.SeenCount += seen
	if page+1 > c.NextPage {
		c.NextPage = page + 1
	}
	c.touch(now)
}

// SkipPage records that page could not be listed and advances past it.
func (c *Context) SkipPage(page int, reason string, now time.Time) {
	c.SkippedPages = append(c.SkippedPages, page)
	if page+1 > c.NextPage {
		c.NextPage = page + 1
	}
	c.RecordError(fmt.Sprintf("page %d skipped: %s", page, reason))
	c.touch(now)
}

// MarkExhausted records that the listing reported no pages after the last checkpoint.
func (c *Context) MarkExhausted() {
	c.Exhausted = true
}

// MarkTruncated records that the page cap ended a listing with more pages remaining.
func (c *Context) MarkTruncated() {
	c.Truncated = true
}

// RecordError appends an error description, bounded by maxRecordedErrors.
func (c *Context) RecordError(msg string) {
	if len(c.Errors) >= maxRecordedErrors {
		c.DroppedErrors++
		return
	}
	c.Errors = append(c.Errors, msg)
}

// RecordDeletion appends a detected deletion.
func (c *Context) RecordDeletion(d models.DeletionSummary) {
	c.Deletions = append(c.Deletions, d)
	c.Deleted++
}

// Complete finishes an in-progress context.
func (c *Context) Complete(now time.Time) error {
	if c.Status != StatusInProgress {
		return c.transitionErr(StatusCompleted)
	}
	c.Status = StatusCompleted
	done := now
	c.CompletedAt = &done
	c.Release(now)
	return nil
}

// Fail records an aborting error on a pending or in-progress context.
func (c *Context) Fail(cause error, now time.Time) error {
	if c.Status != StatusPending && c.Status != StatusInProgress {
		return c.transitionErr(StatusFailed)
	}
	c.Status = StatusFailed
	if cause != nil {
		c.LastError = cause.Error()
	}
	c.Release(now)
	return nil
}

// Clean abandons an in-progress or failed context.
func (c *Context) Clean(now time.Time) error {
	if c.Status != StatusInProgress && c.Status != StatusFailed {
		return c.transitionErr(StatusCleaned)
	}
	c.Status = StatusCleaned
	done := now
	c.CompletedAt = &done
	c.Release(now)
	return nil
}

// Reopen returns a failed context to in-progress so the next run resumes it.
func (c *Context) Reopen(now time.Time) error {
	if c.Status != StatusFailed {
		return c.transitionErr(StatusInProgress)
	}
	c.Status = StatusInProgress
	c.Release(now)
	return nil
}

// IsLive reports whether the owning run has heartbeated within timeout.
func (c *Context) IsLive(now time.Time, timeout time.Duration) bool {
	if c.Status != StatusPending && c.Status != StatusInProgress {
		return false
	}
	if c.HeartbeatAt == nil {
		return false
	}
	return now.Sub(*c.HeartbeatAt) < timeout
}

// EffectiveStatus is Status with stale in-progress contexts read as interrupted.
func (c *Context) EffectiveStatus(now time.Time, timeout time.Duration) Status {
	if c.Status == StatusInProgress && !c.IsLive(now, timeout) {
		return StatusInterrupted
	}
	return c.Status
}

// Resumable reports whether a later run should continue this context.
func (c *Context) Resumable() bool {
	return c.Status == StatusInProgress
}

// ListingComplete reports whether every listing page was seen, which is the
// precondition for absence-based deletion detection.
func (c *Context) ListingComplete() bool {
	return len(c.SkippedPages) == 0 && !c.Truncated
}

// Progress is a read-only view of a context's advancement.
type Progress struct {
	PagesProcessed int     `json:"pages_processed"`
	NextPage       int     `json:"next_page"`
	SkippedPages   []int   `json:"skipped_pages,omitempty"`
	Truncated      bool    `json:"truncated"`
	SeenCount      int     `json:"seen_count"`
	DeclaredCount  int     `json:"declared_count"`
	Percent        float64 `json:"percent"`
}

// Progress reports advancement relative to the collection's declared item count.
func (c *Context) Progress() Progress {
	p := Progress{
		PagesProcessed: c.PagesProcessed,
		NextPage:       c.NextPage,
		SkippedPages:   append([]int(nil), c.SkippedPages...),
		Truncated:      c.Truncated,
		SeenCount:      c.SeenCount,
		DeclaredCount:  c.DeclaredCount,
	}
	switch {
	case c.Status == StatusCompleted:
		p.Percent = 100
	case c.DeclaredCount > 0:
		p.Percent = float64(c.SeenCount) * 100 / float64(c.DeclaredCount)
		if p.Percent > 100 {
			p.Percent = 100
		}
	}
	return p
}

// Clone returns a deep copy.
func (c *Context) Clone() *Context {
	cp := *c
	cp.SkippedPages = append([]int(nil), c.SkippedPages...)
	cp.Errors = append([]string(nil), c.Errors...)
	cp.Deletions = append([]models.DeletionSummary(nil), c.Deletions...)
	if c.HeartbeatAt != nil {
		hb := *c.HeartbeatAt
		cp.HeartbeatAt = &hb
	}
	if c.CompletedAt != nil {
		done := *c.CompletedAt
		cp.CompletedAt = &done
	}
	return &cp
}
