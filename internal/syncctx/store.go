// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package syncctx

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Store persists sync contexts.
type Store interface {
	// Save inserts or replaces a context.
	Save(ctx context.Context, c *Context) error

	// CompareAndSave replaces a stored context only while it is still at
	// revision prev. It returns ErrConcurrentUpdate when another writer got
	// there first, and ErrNotFound when the context is gone.
	CompareAndSave(ctx context.Context, c *Context, prev Revision) error

	// Get returns the context with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Context, error)

	// Active returns the most recently started pending or in-progress context
	// for a collection, or nil when there is none.
	Active(ctx context.Context, collectionID string) (*Context, error)

	// List returns contexts matching filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Context, error)

	// Touch refreshes the heartbeat of a context.
	Touch(ctx context.Context, id string, at time.Time) error

	// Delete removes a context. Missing contexts are not an error.
	Delete(ctx context.Context, id string) error

	// Prune deletes terminal contexts last updated before the cutoff.
	Prune(ctx context.Context, before time.Time) (int, error)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	CollectionID string
	Statuses     []Status
	Limit        int
}

// Matches reports whether c passes the filter (Limit is ignored).
func (f Filter) Matches(c *Context) bool {
	if f.CollectionID != "" && c.CollectionID != f.CollectionID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if c.Status == s {
			return true
		}
	}
	return false
}

// sortNewestFirst orders contexts by StartedAt descending, then ID.
func sortNewestFirst(list []*Context) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].StartedAt.After(list[j].StartedAt)
		}
		return list[i].ID > list[j].ID
	})
}

// StoreType selects a context store backend.
type StoreType string

const (
	// StoreSQLite keeps contexts in the mirror database (default).
	StoreSQLite StoreType = "sqlite"

	// StoreBadger keeps contexts in a separate BadgerDB directory.
	StoreBadger StoreType = "badger"

	// StoreMemory keeps contexts in process memory; they do not survive restarts.
	StoreMemory StoreType = "memory"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewStore returns the context store for storeType. sqlite is the store backed by
// the mirror database and is returned as-is for StoreSQLite. The returned
// closer releases resources opened here (the badger directory).
func NewStore(storeType StoreType, badgerPath string, sqlite Store) (Store, io.Closer, error) {
	switch storeType {
	case StoreSQLite, "":
		if sqlite == nil {
			return nil, nil, fmt.Errorf("sqlite context store not provided")
		}
		return sqlite, nopCloser{}, nil
	case StoreMemory:
		return NewMemoryStore(), nopCloser{}, nil
	case StoreBadger:
		opts := badger.DefaultOptions(badgerPath)
		opts.Logger = nil // Suppress BadgerDB logs

		db, err := badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger db for sync contexts: %w", err)
		}
		return NewBadgerStore(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown sync context store %q", storeType)
	}
}
