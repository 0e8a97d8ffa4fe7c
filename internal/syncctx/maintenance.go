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
)

// Maintenance performs operator actions on stored contexts.
type Maintenance struct {
	store    Store
	liveness time.Duration
	now      func() time.Time
}

// NewMaintenance creates a Maintenance over store. liveness is the heartbeat
// age after which an in-progress context is no longer considered live.
func NewMaintenance(store Store, liveness time.Duration) *Maintenance {
	return &Maintenance{store: store, liveness: liveness, now: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (m *Maintenance) WithClock(now func() time.Time) *Maintenance {
	m.now = now
	return m
}

// View is a context together with its effective status at read time.
type View struct {
	*Context
	EffectiveStatus Status   `json:"effective_status"`
	Progress        Progress `json:"progress"`
}

// List returns matching contexts with their effective status. A filter on
// StatusInterrupted matches in-progress contexts that are not live.
func (m *Maintenance) List(ctx context.Context, filter Filter) ([]View, error) {
	wantInterrupted := false
	storeFilter := filter
	storeFilter.Statuses = nil
	for _, s := range filter.Statuses {
		if s == StatusInterrupted {
			wantInterrupted = true
			storeFilter.Statuses = append(storeFilter.Statuses, StatusInProgress)
			continue
		}
		storeFilter.Statuses = append(storeFilter.Statuses, s)
	}
	if wantInterrupted {
		// Effective status is applied below, so the limit must be too.
		storeFilter.Limit = 0
	}

	list, err := m.store.List(ctx, storeFilter)
	if err != nil {
		return nil, fmt.Errorf("list sync contexts: %w", err)
	}

	now := m.now()
	views := make([]View, 0, len(list))
	for _, c := range list {
		eff := c.EffectiveStatus(now, m.liveness)
		if len(filter.Statuses) > 0 && !statusIn(eff, filter.Statuses) {
			continue
		}
		views = append(views, View{Context: c, EffectiveStatus: eff, Progress: c.Progress()})
		if filter.Limit > 0 && len(views) == filter.Limit {
			break
		}
	}
	return views, nil
}

func statusIn(s Status, list []Status) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// Get returns one context with its effective status.
func (m *Maintenance) Get(ctx context.Context, id string) (View, error) {
	c, err := m.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return View{Context: c, EffectiveStatus: c.EffectiveStatus(m.now(), m.liveness), Progress: c.Progress()}, nil
}

// Clean abandons an interrupted or failed context. Contexts owned by a live
// run are refused with ErrContextLive, including one adopted or touched by a
// run between the read and the write.
func (m *Maintenance) Clean(ctx context.Context, id string) (*Context, error) {
	c, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if c.IsLive(now, m.liveness) {
		return nil, fmt.Errorf("%w: %s", ErrContextLive, id)
	}
	prev := c.Revision()
	if err := c.Clean(now); err != nil {
		return nil, err
	}
	err = m.store.CompareAndSave(ctx, c, prev)
	switch {
	case errors.Is(err, ErrConcurrentUpdate):
		return nil, fmt.Errorf("%w: %s: %w", ErrContextLive, id, err)
	case err != nil:
		return nil, fmt.Errorf("save cleaned context: %w", err)
	}
	return c, nil
}

// CleanStale cleans every interrupted and failed context, optionally limited
// to one collection. It returns the cleaned contexts.
func (m *Maintenance) CleanStale(ctx context.Context, collectionID string) ([]*Context, error) {
	list, err := m.store.List(ctx, Filter{
		CollectionID: collectionID,
		Statuses:     []Status{StatusInProgress, StatusFailed},
	})
	if err != nil {
		return nil, fmt.Errorf("list sync contexts: %w", err)
	}

	var cleaned []*Context
	for _, c := range list {
		got, err := m.Clean(ctx, c.ID)
		if errors.Is(err, ErrContextLive) {
			continue
		}
		if err != nil {
			return cleaned, err
		}
		cleaned = append(cleaned, got)
	}
	return cleaned, nil
}

// Reopen moves a failed context back to in-progress so the next run resumes it.
// A newer pending or in-progress context for the same collection blocks reopening.
func (m *Maintenance) Reopen(ctx context.Context, id string) (*Context, error) {
	c, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	active, err := m.store.Active(ctx, c.CollectionID)
	if err != nil {
		return nil, fmt.Errorf("look up active context: %w", err)
	}
	if active != nil && active.ID != c.ID {
		return nil, fmt.Errorf("%w: collection %s already has active context %s",
			ErrInvalidTransition, c.CollectionID, active.ID)
	}
	prev := c.Revision()
	if err := c.Reopen(m.now()); err != nil {
		return nil, err
	}
	if err := m.store.CompareAndSave(ctx, c, prev); err != nil {
		return nil, fmt.Errorf("save reopened context: %w", err)
	}
	return c, nil
}

// Prune deletes completed and cleaned contexts last updated more than
// retention ago.
func (m *Maintenance) Prune(ctx context.Context, retention time.Duration) (int, error) {
	n, err := m.store.Prune(ctx, m.now().Add(-retention))
	if err != nil {
		return n, fmt.Errorf("prune sync contexts: %w", err)
	}
	return n, nil
}
