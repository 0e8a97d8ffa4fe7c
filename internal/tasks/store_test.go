// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package tasks_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tomtom215/favmirror/internal/store"
	"github.com/tomtom215/favmirror/internal/tasks"
	"github.com/tomtom215/favmirror/internal/tasks/taskstest"
)

func newSQLStore(t *testing.T) *tasks.SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Path: filepath.Join(t.TempDir(), "mirror.db")})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if _, err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return tasks.NewSQLStore(s.DB())
}

func TestStores(t *testing.T) {
	backends := map[string]func(t *testing.T) tasks.Store{
		"memory": func(*testing.T) tasks.Store { return tasks.NewMemoryStore() },
		"sqlite": func(t *testing.T) tasks.Store { return newSQLStore(t) },
	}
	for name, makeStore := range backends {
		t.Run(name, func(t *testing.T) {
			taskstest.RunStoreSuite(t, makeStore)
		})
	}
}
