// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package syncctx

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. Values are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	contexts map[string]*Context
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contexts: make(map[string]*Context)}
}

// Save stores a copy of c.
func (m *MemoryStore) Save(_ context.Context, c *Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[c.ID] = c.Clone()
	return nil
}

// CompareAndSave stores a copy of c if the stored context is still at prev.
func (m *MemoryStore) CompareAndSave(_ context.Context, c *Context, prev Revision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.contexts[c.ID]
	if !ok {
		return ErrNotFound
	}
	if !prev.Matches(cur) {
		return ErrConcurrentUpdate
	}
	m.contexts[c.ID] = c.Clone()
	return nil
}

// Get returns a copy of the context with id.
func (m *MemoryStore) Get(_ context.Context, id string) (*Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contexts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// Active returns the newest pending or in-progress context for collectionID.
func (m *MemoryStore) Active(ctx context.Context, collectionID string) (*Context, error) {
	list, err := m.List(ctx, Filter{
		CollectionID: collectionID,
		Statuses:     []Status{StatusPending, StatusInProgress},
		Limit:        1,
	})
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// List returns copies of matching contexts, newest first.
func (m *MemoryStore) List(_ context.Context, filter Filter) ([]*Context, error) {
	m.mu.RLock()
	out := make([]*Context, 0, len(m.contexts))
	for _, c := range m.contexts {
		if filter.Matches(c) {
			out = append(out, c.Clone())
		}
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Touch refreshes the heartbeat of a context.
func (m *MemoryStore) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contexts[id]
	if !ok {
		return ErrNotFound
	}
	c.Heartbeat(at)
	return nil
}

// Delete removes a context.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contexts, id)
	return nil
}

// Prune removes terminal contexts last updated before the cutoff.
func (m *MemoryStore) Prune(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, c := range m.contexts {
		if c.Status.IsTerminal() && c.UpdatedAt.Before(before) {
			delete(m.contexts, id)
			removed++
		}
	}
	return removed, nil
}
