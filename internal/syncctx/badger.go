// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package syncctx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Badger key prefixes
const (
	badgerContextKeyPrefix    = "syncctx:"
	badgerCollectionKeyPrefix = "syncctx_col:"
)

// BadgerStore implements Store on BadgerDB. Contexts are JSON values under
// syncctx:<id>, with a syncctx_col:<collection>:<id> index for Active lookups.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a store on an open BadgerDB.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func contextKey(id string) []byte {
	return []byte(badgerContextKeyPrefix + id)
}

func collectionKey(collectionID, id string) []byte {
	return []byte(badgerCollectionKeyPrefix + collectionID + ":" + id)
}

// Save stores c and its collection index entry.
func (s *BadgerStore) Save(_ context.Context, c *Context) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal sync context: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(contextKey(c.ID), data); err != nil {
			return fmt.Errorf("set sync context: %w", err)
		}
		if err := txn.Set(collectionKey(c.CollectionID, c.ID), []byte(c.ID)); err != nil {
			return fmt.Errorf("set collection index: %w", err)
		}
		return nil
	})
}

// CompareAndSave stores c if the stored context is still at prev. Badger
// aborts the transaction with ErrConflict when a concurrent writer commits
// first; that is reported as ErrConcurrentUpdate too.
func (s *BadgerStore) CompareAndSave(_ context.Context, c *Context, prev Revision) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal sync context: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		cur, err := getInTxn(txn, c.ID)
		if err != nil {
			return err
		}
		if !prev.Matches(cur) {
			return ErrConcurrentUpdate
		}
		return txn.Set(contextKey(c.ID), data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrConcurrentUpdate
	}
	return err
}

func getInTxn(txn *badger.Txn, id string) (*Context, error) {
	item, err := txn.Get(contextKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var c Context
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &c)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal sync context %s: %w", id, err)
	}
	return &c, nil
}

// Get returns the context with id.
func (s *BadgerStore) Get(_ context.Context, id string) (*Context, error) {
	var c *Context
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		c, err = getInTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Active returns the newest pending or in-progress context for collectionID.
func (s *BadgerStore) Active(_ context.Context, collectionID string) (*Context, error) {
	var candidates []*Context
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerCollectionKeyPrefix + collectionID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var id string
			if err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}
			c, err := getInTxn(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if c.Status == StatusPending || c.Status == StatusInProgress {
				candidates = append(candidates, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sync contexts: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sortNewestFirst(candidates)
	return candidates[0], nil
}

// List returns matching contexts, newest first.
func (s *BadgerStore) List(_ context.Context, filter Filter) ([]*Context, error) {
	var out []*Context
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerContextKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var c Context
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return fmt.Errorf("unmarshal sync context: %w", err)
			}
			if filter.Matches(&c) {
				out = append(out, &c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Touch refreshes the heartbeat of a context.
func (s *BadgerStore) Touch(_ context.Context, id string, at time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		c, err := getInTxn(txn, id)
		if err != nil {
			return err
		}
		c.Heartbeat(at)
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal sync context: %w", err)
		}
		return txn.Set(contextKey(id), data)
	})
}

// Delete removes a context and its index entry.
func (s *BadgerStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		c, err := getInTxn(txn, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(contextKey(id)); err != nil {
			return err
		}
		return txn.Delete(collectionKey(c.CollectionID, id))
	})
}

// Prune removes terminal contexts last updated before the cutoff.
func (s *BadgerStore) Prune(ctx context.Context, before time.Time) (int, error) {
	list, err := s.List(ctx, Filter{Statuses: []Status{StatusCompleted, StatusCleaned}})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, c := range list {
		if !c.UpdatedAt.Before(before) {
			continue
		}
		if err := s.Delete(ctx, c.ID); err != nil {
			return removed, fmt.Errorf("prune sync context %s: %w", c.ID, err)
		}
		removed++
	}
	return removed, nil
}
