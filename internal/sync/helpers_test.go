// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package sync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/favmirror/internal/assets"
	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/source"
	"github.com/tomtom215/favmirror/internal/store"
	"github.com/tomtom215/favmirror/internal/syncctx"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *store.Store
	contexts syncctx.Store
	src      *source.MemorySource
	clock    *testClock
	engine   *Engine
	coverDir string
}

func newHarness(t *testing.T, pageSize int) *harness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	st, err := store.Open(ctx, store.Config{Path: filepath.Join(dir, "mirror.db")})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if _, err := st.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	h := &harness{
		t:        t,
		ctx:      ctx,
		store:    st,
		contexts: st.SyncContexts(),
		src:      source.NewMemorySource(pageSize),
		clock:    newTestClock(),
		coverDir: filepath.Join(dir, "covers"),
	}
	h.engine = h.newEngine(h.src)
	return h
}

func (h *harness) newEngine(src source.Source) *Engine {
	covers := assets.New(h.coverDir, src, time.Second, 1<<20)
	return New(Deps{
		Store:    h.store,
		Contexts: h.contexts,
		Source:   src,
		Covers:   covers,
	}, EngineConfig{
		CoversEnabled:     true,
		LivenessTimeout:   2 * time.Minute,
		HeartbeatInterval: time.Hour,
	}).WithClock(h.clock.Now)
}

func entry(code, title string) source.Entry {
	return source.Entry{
		Item: models.Item{
			RemoteID:   "1" + code,
			ShortCode:  code,
			Kind:       2,
			Title:      title,
			CoverURL:   "https://cdn.test/" + code + ".jpg",
			UploaderID: "7",
			Duration:   60,
			PageCount:  1,
		},
		Uploader: models.Uploader{RemoteID: "7", Name: "Uploader Seven"},
		Stats:    models.ItemStats{Play: 10, Collect: 1},
	}
}

// setListing registers a collection with entries and serves their covers.
func (h *harness) setListing(collectionID, title string, entries ...source.Entry) {
	h.src.AddCollection(source.RemoteCollection{ID: collectionID, Title: title, OwnerID: "42"})
	h.src.SetEntries(collectionID, entries...)
	for _, e := range entries {
		h.src.SetAsset(e.Item.CoverURL, []byte("img-"+e.Item.ShortCode))
	}
}

// run advances the clock and runs the engine.
func (h *harness) run(scope Scope, opts Options) (*models.RunSummary, error) {
	h.t.Helper()
	h.clock.Advance(time.Hour)
	return h.engine.Run(h.ctx, scope, opts)
}

func (h *harness) mustRun(scope Scope, opts Options) *models.RunSummary {
	h.t.Helper()
	summary, err := h.run(scope, opts)
	if err != nil {
		h.t.Fatalf("Run(%s): %v", scope, err)
	}
	return summary
}

func (h *harness) item(code string) *models.Item {
	h.t.Helper()
	it, err := h.store.ItemByShortCode(h.ctx, code)
	if err != nil {
		h.t.Fatalf("ItemByShortCode(%s): %v", code, err)
	}
	return it
}

func (h *harness) deletionLog() []models.DeletionRecord {
	h.t.Helper()
	logs, err := h.store.DeletionLogs(h.ctx, 100)
	if err != nil {
		h.t.Fatalf("DeletionLogs: %v", err)
	}
	return logs
}

func (h *harness) context(id string) *syncctx.Context {
	h.t.Helper()
	c, err := h.contexts.Get(h.ctx, id)
	if err != nil {
		h.t.Fatalf("Get context %s: %v", id, err)
	}
	return c
}

// cancelAfterSource cancels a context once a given listing page was served.
type cancelAfterSource struct {
	source.Source
	page   int
	cancel context.CancelFunc
}

func (s *cancelAfterSource) ListItems(ctx context.Context, collectionID string, page int) (*source.Page, error) {
	p, err := s.Source.ListItems(ctx, collectionID, page)
	if page == s.page {
		s.cancel()
	}
	return p, err
}

// crashAfterExhaustedStore persists every save but fails the one that first
// records an exhausted listing, as a process dying right after that write.
type crashAfterExhaustedStore struct {
	syncctx.Store
	crashed bool
}

func (s *crashAfterExhaustedStore) Save(ctx context.Context, c *syncctx.Context) error {
	if err := s.Store.Save(ctx, c); err != nil {
		return err
	}
	if c.Exhausted && !s.crashed {
		s.crashed = true
		return errors.New("process stopped")
	}
	return nil
}
