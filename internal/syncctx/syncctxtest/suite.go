// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

// Package syncctxtest holds a conformance suite for syncctx.Store implementations.
package syncctxtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/favmirror/internal/syncctx"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// RunStoreSuite exercises the Store contract against a fresh store per case.
func RunStoreSuite(t *testing.T, makeStore func(t *testing.T) syncctx.Store) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		s := makeStore(t)
		c := syncctx.New("100", "Music", "run-1", base)
		c.SkipPage(3, "timeout", base)
		c.MarkExhausted()
		if err := s.Save(ctx, c); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := s.Get(ctx, c.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.CollectionID != "100" || got.Status != syncctx.StatusPending {
			t.Errorf("Get() = %+v", got)
		}
		if len(got.SkippedPages) != 1 || got.SkippedPages[0] != 3 {
			t.Errorf("SkippedPages = %v, want [3]", got.SkippedPages)
		}
		if got.HeartbeatAt == nil || !got.HeartbeatAt.Equal(base) {
			t.Errorf("HeartbeatAt = %v, want %v", got.HeartbeatAt, base)
		}
		if !got.Exhausted {
			t.Error("Exhausted not persisted")
		}
	})

	t.Run("compare and save", func(t *testing.T) {
		s := makeStore(t)
		c := syncctx.New("100", "Music", "run-1", base)
		if err := s.Save(ctx, c); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		stale, _ := s.Get(ctx, c.ID)
		prev := stale.Revision()

		adopted, _ := s.Get(ctx, c.ID)
		if err := adopted.Adopt("run-2", base.Add(time.Minute)); err != nil {
			t.Fatal(err)
		}
		if err := s.CompareAndSave(ctx, adopted, prev); err != nil {
			t.Fatalf("CompareAndSave() first writer error = %v", err)
		}

		if err := stale.Clean(base.Add(2 * time.Minute)); err != nil {
			t.Fatal(err)
		}
		if err := s.CompareAndSave(ctx, stale, prev); !errors.Is(err, syncctx.ErrConcurrentUpdate) {
			t.Fatalf("CompareAndSave() second writer error = %v, want ErrConcurrentUpdate", err)
		}
		got, _ := s.Get(ctx, c.ID)
		if got.OwnerID != "run-2" || got.Status != syncctx.StatusPending {
			t.Errorf("stored context = owner %s status %s", got.OwnerID, got.Status)
		}

		missing := syncctx.New("100", "Music", "run-1", base)
		if err := s.CompareAndSave(ctx, missing, missing.Revision()); !errors.Is(err, syncctx.ErrNotFound) {
			t.Errorf("CompareAndSave() on missing = %v, want ErrNotFound", err)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		s := makeStore(t)
		if _, err := s.Get(ctx, "nope"); !errors.Is(err, syncctx.ErrNotFound) {
			t.Errorf("Get() error = %v, want syncctx.ErrNotFound", err)
		}
	})

	t.Run("active returns newest unfinished", func(t *testing.T) {
		s := makeStore(t)
		old := syncctx.New("100", "Music", "run-1", base)
		_ = old.Begin(base)
		_ = old.Complete(base)
		newer := syncctx.New("100", "Music", "run-2", base.Add(time.Hour))
		_ = newer.Begin(base.Add(time.Hour))
		other := syncctx.New("200", "Films", "run-2", base.Add(2*time.Hour))
		for _, c := range []*syncctx.Context{old, newer, other} {
			if err := s.Save(ctx, c); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		}

		got, err := s.Active(ctx, "100")
		if err != nil {
			t.Fatalf("Active() error = %v", err)
		}
		if got == nil || got.ID != newer.ID {
			t.Errorf("Active() = %v, want %s", got, newer.ID)
		}

		none, err := s.Active(ctx, "300")
		if err != nil || none != nil {
			t.Errorf("Active(unknown) = %v, %v; want nil, nil", none, err)
		}
	})

	t.Run("list filters and orders newest first", func(t *testing.T) {
		s := makeStore(t)
		for i := 0; i < 3; i++ {
			c := syncctx.New("100", "Music", "run", base.Add(time.Duration(i)*time.Minute))
			_ = c.Begin(c.StartedAt)
			if i == 0 {
				_ = c.Complete(c.StartedAt)
			}
			_ = s.Save(ctx, c)
		}
		_ = s.Save(ctx, syncctx.New("200", "Films", "run", base))

		all, err := s.List(ctx, syncctx.Filter{CollectionID: "100"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("len(List) = %d, want 3", len(all))
		}
		if !all[0].StartedAt.After(all[1].StartedAt) {
			t.Error("List not ordered newest first")
		}

		running, _ := s.List(ctx, syncctx.Filter{Statuses: []syncctx.Status{syncctx.StatusInProgress}})
		if len(running) != 2 {
			t.Errorf("in-progress count = %d, want 2", len(running))
		}

		limited, _ := s.List(ctx, syncctx.Filter{Limit: 1})
		if len(limited) != 1 {
			t.Errorf("limited count = %d, want 1", len(limited))
		}
	})

	t.Run("touch refreshes heartbeat", func(t *testing.T) {
		s := makeStore(t)
		c := syncctx.New("100", "Music", "run-1", base)
		_ = s.Save(ctx, c)
		later := base.Add(90 * time.Second)
		if err := s.Touch(ctx, c.ID, later); err != nil {
			t.Fatalf("Touch() error = %v", err)
		}
		got, _ := s.Get(ctx, c.ID)
		if got.HeartbeatAt == nil || !got.HeartbeatAt.Equal(later) {
			t.Errorf("HeartbeatAt = %v, want %v", got.HeartbeatAt, later)
		}
		if err := s.Touch(ctx, "nope", later); !errors.Is(err, syncctx.ErrNotFound) {
			t.Errorf("Touch(missing) error = %v, want syncctx.ErrNotFound", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := makeStore(t)
		c := syncctx.New("100", "Music", "run-1", base)
		_ = s.Save(ctx, c)
		if err := s.Delete(ctx, c.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.Get(ctx, c.ID); !errors.Is(err, syncctx.ErrNotFound) {
			t.Errorf("Get() after delete error = %v", err)
		}
		if err := s.Delete(ctx, c.ID); err != nil {
			t.Errorf("Delete(missing) error = %v", err)
		}
	})

	t.Run("prune removes only old terminal contexts", func(t *testing.T) {
		s := makeStore(t)
		oldDone := syncctx.New("100", "Music", "run-1", base)
		_ = oldDone.Begin(base)
		_ = oldDone.Complete(base)
		oldFailed := syncctx.New("100", "Music", "run-1", base)
		_ = oldFailed.Fail(errors.New("x"), base)
		recentDone := syncctx.New("100", "Music", "run-1", base)
		_ = recentDone.Begin(base)
		_ = recentDone.Complete(base.Add(48 * time.Hour))
		for _, c := range []*syncctx.Context{oldDone, oldFailed, recentDone} {
			_ = s.Save(ctx, c)
		}

		n, err := s.Prune(ctx, base.Add(24*time.Hour))
		if err != nil {
			t.Fatalf("Prune() error = %v", err)
		}
		if n != 1 {
			t.Errorf("Prune() = %d, want 1", n)
		}
		if _, err := s.Get(ctx, oldFailed.ID); err != nil {
			t.Errorf("failed context pruned: %v", err)
		}
		if _, err := s.Get(ctx, recentDone.ID); err != nil {
			t.Errorf("recent context pruned: %v", err)
		}
	})

	t.Run("stored values are isolated from callers", func(t *testing.T) {
		s := makeStore(t)
		c := syncctx.New("100", "Music", "run-1", base)
		_ = s.Save(ctx, c)
		c.NextPage = 42
		got, _ := s.Get(ctx, c.ID)
		if got.NextPage != 1 {
			t.Errorf("NextPage = %d, want 1", got.NextPage)
		}
	})
}
