// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists tasks.
type Store interface {
	// Save inserts or replaces a task.
	Save(ctx context.Context, t *Task) error

	// Get returns the task with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Task, error)

	// List returns tasks matching filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Task, error)

	// NextPending returns the pending task due at now with the highest
	// priority, oldest first among equals, or nil when none is due.
	NextPending(ctx context.Context, now time.Time) (*Task, error)

	// Delete removes a task. Missing tasks are not an error.
	Delete(ctx context.Context, id string) error

	// Prune deletes terminal tasks last updated before the cutoff.
	Prune(ctx context.Context, before time.Time) (int, error)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Statuses []Status
	Limit    int
}

// Matches reports whether t passes the filter (Limit is ignored).
func (f Filter) Matches(t *Task) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

// runsBefore orders pending tasks: higher priority first, then older, then ID.
func runsBefore(a, b *Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*Task)}
}

// Save stores a copy of t.
func (m *MemoryStore) Save(_ context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t.Clone()
	return nil
}

// Get returns a copy of the task with id.
func (m *MemoryStore) Get(_ context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// List returns copies of matching tasks, newest first.
func (m *MemoryStore) List(_ context.Context, filter Filter) ([]*Task, error) {
	m.mu.RLock()
	out := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if filter.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// NextPending returns a copy of the next due pending task.
func (m *MemoryStore) NextPending(_ context.Context, now time.Time) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var next *Task
	for _, t := range m.tasks {
		if t.Due(now) && (next == nil || runsBefore(t, next)) {
			next = t
		}
	}
	if next == nil {
		return nil, nil
	}
	return next.Clone(), nil
}

// Delete removes a task.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

// Prune removes terminal tasks last updated before the cutoff.
func (m *MemoryStore) Prune(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, t := range m.tasks {
		if t.Status.IsTerminal() && t.UpdatedAt.Before(before) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed, nil
}
