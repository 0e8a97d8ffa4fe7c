// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/source"
	"github.com/tomtom215/favmirror/internal/store"
	favsync "github.com/tomtom215/favmirror/internal/sync"
)

func openStore(t *testing.T, migrate bool) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Path: filepath.Join(t.TempDir(), "mirror.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if migrate {
		if _, err := s.Migrate(context.Background()); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
	}
	return s
}

func listedEntry(code, title string) source.Entry {
	return source.Entry{
		Item: models.Item{
			RemoteID:   "1" + code,
			ShortCode:  code,
			Kind:       2,
			Title:      title,
			UploaderID: "7",
			Duration:   60,
			PageCount:  1,
		},
		Uploader: models.Uploader{RemoteID: "7", Name: "Uploader Seven"},
		Stats:    models.ItemStats{Play: 10},
	}
}

// currentListing is the remote state both stores are synced against.
func currentListing() *source.MemorySource {
	src := source.NewMemorySource(20)
	src.AddCollection(source.RemoteCollection{ID: "100", Title: "A", OwnerID: "42"})
	src.SetEntries("100", listedEntry("BV2", "live"), listedEntry("BV4", "new"))
	src.AddCollection(source.RemoteCollection{ID: "200", Title: "B", OwnerID: "42"})
	src.SetEntries("200", listedEntry("BV5", "other"))
	return src
}

func syncOnce(t *testing.T, s *store.Store) {
	t.Helper()
	e := favsync.New(favsync.Deps{Store: s, Contexts: s.SyncContexts(), Source: currentListing()}, favsync.EngineConfig{})
	if _, err := e.Run(context.Background(), favsync.All, favsync.Options{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

// liveView renders the live items of every collection as "remote/code/title" lines.
func liveView(t *testing.T, s *store.Store) []string {
	t.Helper()
	ctx := context.Background()
	cols, err := s.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections() error = %v", err)
	}
	var out []string
	for _, c := range cols {
		items, err := s.ListItems(ctx, c.ID, false, 0, 0)
		if err != nil {
			t.Fatalf("ListItems(%s) error = %v", c.RemoteID, err)
		}
		for _, it := range items {
			out = append(out, fmt.Sprintf("%s/%s/%s/%s", c.RemoteID, c.Title, it.ShortCode, it.Title))
		}
	}
	sort.Strings(out)
	return out
}

func TestEngineOnMigratedStore(t *testing.T) {
	ctx := context.Background()

	migrated := openStore(t, false)
	store.SeedV1(t, migrated)
	if _, err := migrated.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	fresh := openStore(t, true)

	syncOnce(t, migrated)
	syncOnce(t, fresh)

	got, want := liveView(t, migrated), liveView(t, fresh)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("live items after sync\nmigrated: %v\nfresh:    %v", got, want)
	}

	t.Run("history kept", func(t *testing.T) {
		it, err := migrated.ItemByShortCode(ctx, "BV2")
		if err != nil {
			t.Fatal(err)
		}
		if it.Title != "live" || it.Kind != 2 {
			t.Errorf("BV2 not updated from the listing: %+v", it)
		}
		ms, err := migrated.ActiveMemberships(ctx, it.ID)
		if err != nil || len(ms) != 1 {
			t.Fatalf("ActiveMemberships() = %v, %v", ms, err)
		}
		if ms[0].FirstSeen.UnixMilli() != 0 {
			t.Errorf("first_seen = %v, want the v1 value", ms[0].FirstSeen)
		}

		for _, code := range []string{"BV1", "BV3"} {
			it, err := migrated.ItemByShortCode(ctx, code)
			if err != nil {
				t.Fatal(err)
			}
			if !it.IsDeleted {
				t.Errorf("%s lost its deletion flag", code)
			}
		}
	})

	t.Run("second sync changes nothing", func(t *testing.T) {
		e := favsync.New(favsync.Deps{Store: migrated, Contexts: migrated.SyncContexts(), Source: currentListing()}, favsync.EngineConfig{})
		summary, err := e.Run(ctx, favsync.All, favsync.Options{})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if summary.Added != 0 || summary.Updated != 0 || summary.Deleted != 0 {
			t.Errorf("summary = %+v", summary)
		}
	})
}
