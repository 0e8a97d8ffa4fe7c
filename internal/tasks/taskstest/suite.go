// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

// Package taskstest holds a conformance suite for tasks.Store implementations.
package taskstest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/tasks"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mustSave(t *testing.T, s tasks.Store, task *tasks.Task) {
	t.Helper()
	if err := s.Save(context.Background(), task); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

// RunStoreSuite exercises the Store contract against a fresh store per case.
func RunStoreSuite(t *testing.T, makeStore func(t *testing.T) tasks.Store) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		s := makeStore(t)
		task := tasks.New(tasks.Request{CollectionID: "100", ForceCovers: true, Priority: 5}, 2, base)
		_ = task.Start(base.Add(time.Second))
		sum := models.NewRunSummary("run-1", "collection 100", base)
		sum.Added = 3
		_ = task.Complete(sum, base.Add(time.Minute))
		mustSave(t, s, task)

		got, err := s.Get(ctx, task.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.CollectionID != "100" || !got.ForceCovers || got.Priority != 5 || got.Status != tasks.StatusCompleted {
			t.Errorf("Get() = %+v", got)
		}
		if got.Summary == nil || got.Summary.Added != 3 {
			t.Errorf("Summary = %+v, want Added 3", got.Summary)
		}
		if got.CompletedAt == nil || !got.CompletedAt.Equal(base.Add(time.Minute)) {
			t.Errorf("CompletedAt = %v", got.CompletedAt)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		s := makeStore(t)
		if _, err := s.Get(ctx, "nope"); !errors.Is(err, tasks.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list filters newest first", func(t *testing.T) {
		s := makeStore(t)
		older := tasks.New(tasks.Request{}, 0, base)
		newer := tasks.New(tasks.Request{}, 0, base.Add(time.Minute))
		done := tasks.New(tasks.Request{}, 0, base.Add(2*time.Minute))
		_ = done.Start(base)
		_ = done.Fail(errors.New("boom"), tasks.CodeSyncError, nil, base)
		for _, task := range []*tasks.Task{older, newer, done} {
			mustSave(t, s, task)
		}

		pending, err := s.List(ctx, tasks.Filter{Statuses: []tasks.Status{tasks.StatusPending}})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(pending) != 2 || pending[0].ID != newer.ID || pending[1].ID != older.ID {
			t.Errorf("List(pending) = %v", ids(pending))
		}

		all, _ := s.List(ctx, tasks.Filter{Limit: 1})
		if len(all) != 1 || all[0].ID != done.ID {
			t.Errorf("List(limit 1) = %v, want [%s]", ids(all), done.ID)
		}
	})

	t.Run("next pending orders by priority then age", func(t *testing.T) {
		s := makeStore(t)
		low := tasks.New(tasks.Request{Priority: 0}, 0, base)
		highNew := tasks.New(tasks.Request{Priority: 10}, 0, base.Add(2*time.Minute))
		highOld := tasks.New(tasks.Request{Priority: 10}, 0, base.Add(time.Minute))
		for _, task := range []*tasks.Task{low, highNew, highOld} {
			mustSave(t, s, task)
		}

		next, err := s.NextPending(ctx, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("NextPending() error = %v", err)
		}
		if next == nil || next.ID != highOld.ID {
			t.Errorf("NextPending() = %v, want %s", next, highOld.ID)
		}
	})

	t.Run("next pending skips delayed and finished tasks", func(t *testing.T) {
		s := makeStore(t)
		delayed := tasks.New(tasks.Request{Priority: 10}, 0, base)
		_ = delayed.Start(base)
		later := base.Add(10 * time.Minute)
		_ = delayed.Requeue(&later, base)
		running := tasks.New(tasks.Request{Priority: 5}, 0, base)
		_ = running.Start(base)
		plain := tasks.New(tasks.Request{}, 0, base)
		for _, task := range []*tasks.Task{delayed, running, plain} {
			mustSave(t, s, task)
		}

		next, _ := s.NextPending(ctx, base.Add(time.Minute))
		if next == nil || next.ID != plain.ID {
			t.Errorf("NextPending(before delay) = %v, want %s", next, plain.ID)
		}
		next, _ = s.NextPending(ctx, later)
		if next == nil || next.ID != delayed.ID {
			t.Errorf("NextPending(after delay) = %v, want %s", next, delayed.ID)
		}
	})

	t.Run("next pending on empty store", func(t *testing.T) {
		s := makeStore(t)
		next, err := s.NextPending(ctx, base)
		if err != nil || next != nil {
			t.Errorf("NextPending() = %v, %v, want nil, nil", next, err)
		}
	})

	t.Run("delete and prune", func(t *testing.T) {
		s := makeStore(t)
		old := tasks.New(tasks.Request{}, 0, base)
		_ = old.Start(base)
		_ = old.Complete(nil, base)
		fresh := tasks.New(tasks.Request{}, 0, base)
		_ = fresh.Start(base)
		_ = fresh.Complete(nil, base.Add(48*time.Hour))
		pending := tasks.New(tasks.Request{}, 0, base)
		gone := tasks.New(tasks.Request{}, 0, base)
		for _, task := range []*tasks.Task{old, fresh, pending, gone} {
			mustSave(t, s, task)
		}

		if err := s.Delete(ctx, gone.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := s.Delete(ctx, gone.ID); err != nil {
			t.Errorf("Delete(missing) error = %v", err)
		}

		n, err := s.Prune(ctx, base.Add(24*time.Hour))
		if err != nil {
			t.Fatalf("Prune() error = %v", err)
		}
		if n != 1 {
			t.Errorf("Prune() = %d, want 1", n)
		}
		left, _ := s.List(ctx, tasks.Filter{})
		if len(left) != 2 {
			t.Errorf("remaining = %v, want fresh and pending", ids(left))
		}
	})
}

func ids(list []*tasks.Task) []string {
	out := make([]string, len(list))
	for i, task := range list {
		out[i] = task.ID
	}
	return out
}
