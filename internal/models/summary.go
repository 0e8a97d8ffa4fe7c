// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package models

import "time"

// CollectionResult holds the counters of one collection within a run.
type CollectionResult struct {
	CollectionID     string            `json:"collection_id"`
	Title            string            `json:"title"`
	ContextID        string            `json:"context_id,omitempty"`
	Resumed          bool              `json:"resumed"`
	PagesProcessed   int               `json:"pages_processed"`
	PagesSkipped     int               `json:"pages_skipped"`
	ListingComplete  bool              `json:"listing_complete"`
	Added            int               `json:"added"`
	Updated          int               `json:"updated"`
	Deleted          int               `json:"deleted"`
	CoversDownloaded int               `json:"covers_downloaded"`
	Errors           []string          `json:"errors,omitempty"`
	Deletions        []DeletionSummary `json:"deletions,omitempty"`
}

// RunSummary is the result of one engine invocation.
type RunSummary struct {
	RunID                string             `json:"run_id"`
	Scope                string             `json:"scope"`
	StartedAt            time.Time          `json:"started_at"`
	FinishedAt           time.Time          `json:"finished_at"`
	Cancelled            bool               `json:"cancelled"`
	CollectionsProcessed int                `json:"collections_processed"`
	Added                int                `json:"added"`
	Updated              int                `json:"updated"`
	Deleted              int                `json:"deleted"`
	CoversDownloaded     int                `json:"covers_downloaded"`
	Errors               []string           `json:"errors"`
	Deletions            []DeletionSummary  `json:"deletions"`
	Collections          []CollectionResult `json:"collections"`
}

// NewRunSummary creates an empty summary for a run.
func NewRunSummary(runID, scope string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		Scope:     scope,
		StartedAt: startedAt,
		Errors:    []string{},
		Deletions: []DeletionSummary{},
	}
}

// AddCollection folds one collection's result into the run totals.
func (s *RunSummary) AddCollection(r CollectionResult) {
	s.CollectionsProcessed++
	s.Added += r.Added
	s.Updated += r.Updated
	s.Deleted += r.Deleted
	s.CoversDownloaded += r.CoversDownloaded
	s.Errors = append(s.Errors, r.Errors...)
	s.Deletions = append(s.Deletions, r.Deletions...)
	s.Collections = append(s.Collections, r)
}

// AddError records a run-wide error description.
func (s *RunSummary) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// Duration returns how long the run took, or zero while it is still running.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
