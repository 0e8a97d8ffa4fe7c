// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package source

import (
	"context"
	"fmt"
	"sync"
)

// MemorySource is a scripted in-memory Source for tests and dry runs.
// It is safe for concurrent use. Listings are split into pages of PageSize
// entries in the order they were added.
type MemorySource struct {
	mu sync.Mutex

	pageSize  int
	pageLimit int

	collections []RemoteCollection
	entries     map[string][]Entry
	pageErrs    map[string]map[int]error
	details     map[string]*Entry
	gone        map[string]bool
	detailErrs  map[string]error
	assets      map[string][]byte
	listErr     error
	requests    []string
}

// NewMemorySource creates an empty source serving pageSize entries per page.
func NewMemorySource(pageSize int) *MemorySource {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &MemorySource{
		pageSize:   pageSize,
		entries:    make(map[string][]Entry),
		pageErrs:   make(map[string]map[int]error),
		details:    make(map[string]*Entry),
		gone:       make(map[string]bool),
		detailErrs: make(map[string]error),
		assets:     make(map[string][]byte),
	}
}

// SetPageLimit caps listing pages. Zero means unlimited.
func (m *MemorySource) SetPageLimit(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageLimit = n
}

// AddCollection registers a collection, replacing one with the same id.
func (m *MemorySource) AddCollection(c RemoteCollection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.collections {
		if m.collections[i].ID == c.ID {
			m.collections[i] = c
			return
		}
	}
	m.collections = append(m.collections, c)
	if _, ok := m.entries[c.ID]; !ok {
		m.entries[c.ID] = nil
	}
}

// SetEntries replaces the listing of a collection.
func (m *MemorySource) SetEntries(collectionID string, entries ...Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[collectionID] = append([]Entry(nil), entries...)
}

// RemoveEntry drops an item from a collection listing.
func (m *MemorySource) RemoveEntry(collectionID, shortCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[collectionID]
	kept := list[:0]
	for _, e := range list {
		if e.Item.ShortCode != shortCode {
			kept = append(kept, e)
		}
	}
	m.entries[collectionID] = kept
}

// FailPage makes ListItems return err for one page. A nil err clears it.
func (m *MemorySource) FailPage(collectionID string, page int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.pageErrs[collectionID], page)
		return
	}
	if m.pageErrs[collectionID] == nil {
		m.pageErrs[collectionID] = make(map[int]error)
	}
	m.pageErrs[collectionID][page] = err
}

// FailListCollections makes ListCollections return err. A nil err clears it.
func (m *MemorySource) FailListCollections(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// SetGone makes GetItemDetail report the item removed.
func (m *MemorySource) SetGone(shortCode string, gone bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gone[shortCode] = gone
}

// SetDetail sets the entry GetItemDetail returns for a short code.
func (m *MemorySource) SetDetail(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := e
	m.details[e.Item.ShortCode] = &cp
}

// FailDetail makes GetItemDetail return err for a short code. A nil err clears it.
func (m *MemorySource) FailDetail(shortCode string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.detailErrs, shortCode)
		return
	}
	m.detailErrs[shortCode] = err
}

// SetAsset registers bytes served for url.
func (m *MemorySource) SetAsset(url string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[url] = append([]byte(nil), data...)
}

// Requests returns the log of calls, e.g. "list:100:2" or "detail:BV1xx".
func (m *MemorySource) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// CountRequests returns how many logged requests equal req.
func (m *MemorySource) CountRequests(req string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r == req {
			n++
		}
	}
	return n
}

// ResetRequests clears the request log.
func (m *MemorySource) ResetRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

func (m *MemorySource) logf(format string, args ...any) {
	m.requests = append(m.requests, fmt.Sprintf(format, args...))
}

// ListCollections returns registered collections.
func (m *MemorySource) ListCollections(ctx context.Context) ([]RemoteCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logf("collections")
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]RemoteCollection, len(m.collections))
	copy(out, m.collections)
	for i := range out {
		out[i].MediaCount = len(m.entries[out[i].ID])
	}
	return out, nil
}

// ListItems serves one page of a collection.
func (m *MemorySource) ListItems(ctx context.Context, collectionID string, page int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logf("list:%s:%d", collectionID, page)

	if m.pageLimit > 0 && page > m.pageLimit {
		return nil, fmt.Errorf("%w: page %d > %d", ErrPageCapReached, page, m.pageLimit)
	}
	entries, ok := m.entries[collectionID]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", ErrNotFound, collectionID)
	}
	if err := m.pageErrs[collectionID][page]; err != nil {
		return nil, err
	}

	start := (page - 1) * m.pageSize
	if start < 0 {
		start = 0
	}
	end := start + m.pageSize
	p := &Page{Number: page}
	if start < len(entries) {
		if end > len(entries) {
			end = len(entries)
		}
		p.Entries = append([]Entry(nil), entries[start:end]...)
	}
	p.HasMore = end < len(entries)
	return p, nil
}

// GetItemDetail returns the detail override, or the first listing entry with
// the short code.
func (m *MemorySource) GetItemDetail(ctx context.Context, shortCode string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logf("detail:%s", shortCode)

	if err := m.detailErrs[shortCode]; err != nil {
		return nil, err
	}
	if m.gone[shortCode] {
		return nil, &APIError{Op: "detail", Code: -404, Message: "gone", Kind: ErrItemGone}
	}
	if d, ok := m.details[shortCode]; ok {
		cp := *d
		return &cp, nil
	}
	for _, list := range m.entries {
		for _, e := range list {
			if e.Item.ShortCode == shortCode && !e.Unavailable {
				cp := e
				return &cp, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: item %s", ErrNotFound, shortCode)
}

// FetchAsset returns registered bytes for url.
func (m *MemorySource) FetchAsset(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logf("asset:%s", url)
	data, ok := m.assets[url]
	if !ok {
		return nil, fmt.Errorf("%w: asset %s", ErrNotFound, url)
	}
	return append([]byte(nil), data...), nil
}

// PageLimit returns the configured page cap.
func (m *MemorySource) PageLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pageLimit
}

var _ Source = (*MemorySource)(nil)
