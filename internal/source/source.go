// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

// Package source is the remote favorites API as seen by the sync engine:
// collection listing, paged item listing, item detail and cover download.
//
// Failures are classified into sentinel errors so the engine can decide the
// policy without knowing the remote platform:
//
//	ErrItemGone      the remote reports the item removed (detail only)
//	ErrNotFound      the collection or page does not exist
//	ErrTransient     network, timeout, rate-limit or 5xx; safe to skip and retry later
//	ErrUnavailable   credentials rejected or the circuit is open; abort the run
//	ErrPageCapReached the page is beyond the configured per-collection cap
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/favmirror/internal/models"
)

var (
	ErrItemGone       = errors.New("item removed by remote")
	ErrNotFound       = errors.New("remote resource not found")
	ErrTransient      = errors.New("transient remote error")
	ErrUnavailable    = errors.New("remote source unavailable")
	ErrPageCapReached = errors.New("page cap reached")
	ErrAssetTooLarge  = errors.New("asset exceeds size limit")
)

// Source is the remote favorites API.
type Source interface {
	// ListCollections returns every collection of the configured account.
	ListCollections(ctx context.Context) ([]RemoteCollection, error)

	// ListItems returns one page (1-based) of a collection's listing.
	ListItems(ctx context.Context, collectionID string, page int) (*Page, error)

	// GetItemDetail fetches one item by short code. ErrItemGone means the
	// remote platform reports it removed.
	GetItemDetail(ctx context.Context, shortCode string) (*Entry, error)

	// FetchAsset downloads a binary asset such as a cover image.
	FetchAsset(ctx context.Context, url string) ([]byte, error)

	// PageLimit is the maximum page number ListItems will serve per collection.
	PageLimit() int
}

// RemoteCollection is collection metadata as reported by the remote.
type RemoteCollection struct {
	ID          string
	Title       string
	OwnerID     string
	Description string
	CoverURL    string
	MediaCount  int
}

// Model converts to the stored representation.
func (c RemoteCollection) Model() *models.Collection {
	return &models.Collection{
		RemoteID:    c.ID,
		Title:       c.Title,
		OwnerID:     c.OwnerID,
		Description: c.Description,
		CoverURL:    c.CoverURL,
		MediaCount:  c.MediaCount,
	}
}

// Page is one page of a collection listing.
type Page struct {
	Number  int
	Entries []Entry
	HasMore bool

	// Collection carries header metadata when the remote includes it.
	Collection *RemoteCollection
}

// Entry is one item as listed or as returned by detail.
type Entry struct {
	Item     models.Item
	Uploader models.Uploader
	Stats    models.ItemStats
	FavTime  *time.Time

	// Unavailable marks a listing entry the remote shows as invalidated. Its
	// fields are placeholders and need confirmation through GetItemDetail.
	Unavailable bool
}

// APIError is a classified remote failure.
type APIError struct {
	Op         string
	StatusCode int
	Code       int
	Message    string
	Kind       error
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: remote code %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

// Unwrap returns the sentinel the error was classified as.
func (e *APIError) Unwrap() error {
	return e.Kind
}

// ErrorType returns a short label for metrics.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrItemGone):
		return "gone"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrPageCapReached):
		return "page_cap"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
