// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/source"
	"github.com/tomtom215/favmirror/internal/store"
	"github.com/tomtom215/favmirror/internal/syncctx"
)

func TestScenarioThreeItems(t *testing.T) {
	h := newHarness(t, 20)
	h.setListing("100", "Favorites", entry("BV1", "one"), entry("BV2", "two"), entry("BV3", "three"))

	first := h.mustRun(All, Options{})
	if first.CollectionsProcessed != 1 || first.Added != 3 || first.Updated != 0 || first.Deleted != 0 {
		t.Fatalf("first run summary = %+v", first)
	}
	if first.CoversDownloaded != 3 {
		t.Errorf("covers downloaded = %d, want 3", first.CoversDownloaded)
	}

	col, err := h.store.CollectionByRemoteID(h.ctx, "100")
	if err != nil {
		t.Fatalf("CollectionByRemoteID: %v", err)
	}
	if col.LastSynced == nil {
		t.Error("last_synced not set after first run")
	}
	ids := map[string]int64{}
	for _, code := range []string{"BV1", "BV2", "BV3"} {
		it := h.item(code)
		ids[code] = it.ID
		if it.LocalCoverPath != filepath.Join(h.coverDir, code+".jpg") {
			t.Errorf("%s cover path = %q", code, it.LocalCoverPath)
		}
		ms, err := h.store.ActiveMemberships(h.ctx, it.ID)
		if err != nil || len(ms) != 1 {
			t.Fatalf("%s memberships = %v, %v", code, ms, err)
		}
		if ms[0].FirstSeen.IsZero() {
			t.Errorf("%s first_seen not set", code)
		}
	}

	h.src.RemoveEntry("100", "BV2")
	second := h.mustRun(All, Options{})
	if second.Added != 0 || second.Deleted != 1 || second.Updated != 0 {
		t.Fatalf("second run summary = %+v", second)
	}
	if len(second.Deletions) != 1 || second.Deletions[0].ShortCode != "BV2" {
		t.Errorf("deletions = %+v", second.Deletions)
	}

	if !h.item("BV2").IsDeleted {
		t.Error("BV2 should be flagged deleted")
	}
	for _, code := range []string{"BV1", "BV3"} {
		it := h.item(code)
		if it.IsDeleted {
			t.Errorf("%s must not be deleted", code)
		}
		if it.ID != ids[code] {
			t.Errorf("%s was re-inserted: id %d -> %d", code, ids[code], it.ID)
		}
	}

	logs := h.deletionLog()
	if len(logs) != 1 {
		t.Fatalf("deletion log has %d entries, want 1", len(logs))
	}
	if logs[0].ShortCode != "BV2" || logs[0].Reason != models.ReasonRemovedFromCollection ||
		logs[0].UploaderName != "Uploader Seven" || logs[0].CollectionTitle != "Favorites" {
		t.Errorf("deletion record = %+v", logs[0])
	}

	t.Run("deleted flag is set once", func(t *testing.T) {
		third := h.mustRun(All, Options{})
		if third.Deleted != 0 || len(h.deletionLog()) != 1 {
			t.Errorf("third run deleted=%d log=%d", third.Deleted, len(h.deletionLog()))
		}
	})
}

func TestIdempotentRuns(t *testing.T) {
	h := newHarness(t, 2)
	h.setListing("100", "A", entry("BV1", "one"), entry("BV2", "two"), entry("BV3", "three"))

	h.mustRun(All, Options{})
	second := h.mustRun(All, Options{})
	if second.Added != 0 || second.Updated != 0 || second.Deleted != 0 || second.CoversDownloaded != 0 {
		t.Fatalf("second run not idempotent: %+v", second)
	}
	if len(second.Errors) != 0 {
		t.Errorf("unexpected errors: %v", second.Errors)
	}
	if n := h.src.CountRequests("asset:https://cdn.test/BV1.jpg"); n != 1 {
		t.Errorf("cover fetched %d times, want 1", n)
	}

	hist, err := h.store.StatsHistory(h.ctx, h.item("BV1").ID, 10)
	if err != nil || len(hist) != 1 {
		t.Errorf("stats history = %d, %v; unchanged counters must not append", len(hist), err)
	}
}

func TestUpdatedCounting(t *testing.T) {
	h := newHarness(t, 20)
	h.setListing("100", "A", entry("BV1", "one"), entry("BV2", "two"), entry("BV3", "three"))
	h.mustRun(All, Options{})

	renamed := entry("BV1", "one (remastered)")
	busier := entry("BV3", "three")
	busier.Stats.Play = 999
	h.src.SetEntries("100", renamed, entry("BV2", "two"), busier)

	summary := h.mustRun(All, Options{})
	if summary.Updated != 2 || summary.Added != 0 {
		t.Fatalf("summary = %+v, want 2 updated", summary)
	}
	if got := h.item("BV1").Title; got != "one (remastered)" {
		t.Errorf("title = %q", got)
	}
	hist, _ := h.store.StatsHistory(h.ctx, h.item("BV3").ID, 10)
	if len(hist) != 2 {
		t.Errorf("BV3 stats snapshots = %d, want 2", len(hist))
	}
}

func TestDeletionRequiresAbsenceEverywhere(t *testing.T) {
	h := newHarness(t, 20)
	shared := entry("BVx", "shared")
	h.setListing("A", "First", shared, entry("BVa", "only a"))
	h.setListing("B", "Second", shared)
	h.mustRun(All, Options{})

	h.src.RemoveEntry("A", "BVx")
	summary := h.mustRun(All, Options{})
	if summary.Deleted != 0 {
		t.Fatalf("item still in B was deleted: %+v", summary)
	}
	x := h.item("BVx")
	if x.IsDeleted {
		t.Fatal("BVx must survive while B holds it")
	}
	all, _ := h.store.Memberships(h.ctx, x.ID)
	active, _ := h.store.ActiveMemberships(h.ctx, x.ID)
	if len(all) != 2 || len(active) != 1 {
		t.Errorf("memberships total=%d active=%d, want 2/1", len(all), len(active))
	}

	h.src.RemoveEntry("B", "BVx")
	summary = h.mustRun(All, Options{})
	if summary.Deleted != 1 || !h.item("BVx").IsDeleted {
		t.Fatalf("BVx not deleted after leaving every collection: %+v", summary)
	}
	if logs := h.deletionLog(); len(logs) != 1 || logs[0].CollectionRemoteID != "B" {
		t.Errorf("deletion log = %+v", logs)
	}
}

func TestOfficialClassification(t *testing.T) {
	h := newHarness(t, 20)
	official := entry("BVo", "documentary")
	official.Item.OfficialInfo = json.RawMessage(`{"type_name":"documentary"}`)
	seasonOnly := entry("BVs", "series episode")
	seasonOnly.Item.SeasonInfo = json.RawMessage(`{"id":5,"title":"series"}`)
	emptyOfficial := entry("BVe", "empty")
	emptyOfficial.Item.OfficialInfo = json.RawMessage(`{}`)
	h.setListing("100", "A", official, seasonOnly, emptyOfficial)

	h.mustRun(All, Options{})

	if !h.item("BVo").IsOfficial() {
		t.Error("item with official info should be official")
	}
	if h.item("BVs").IsOfficial() {
		t.Error("season info alone must not make an item official")
	}
	if h.item("BVe").IsOfficial() {
		t.Error("empty official payload must not make an item official")
	}
	n, err := h.store.CountOfficialItems(h.ctx)
	if err != nil || n != 1 {
		t.Errorf("CountOfficialItems = %d, %v", n, err)
	}
}

func placeholder(code string) source.Entry {
	return source.Entry{
		Item:        models.Item{ShortCode: code, Title: "已失效视频", Attr: 9},
		Uploader:    models.Uploader{RemoteID: "0"},
		Unavailable: true,
	}
}

func TestReportedGoneMidListing(t *testing.T) {
	h := newHarness(t, 20)
	h.setListing("100", "A", entry("BV1", "one"), entry("BV2", "two"))
	h.mustRun(All, Options{})

	h.src.SetEntries("100", entry("BV1", "one"), placeholder("BV2"))
	h.src.SetGone("BV2", true)

	summary := h.mustRun(All, Options{})
	if summary.Deleted != 1 || summary.Updated != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	it := h.item("BV2")
	if !it.IsDeleted {
		t.Error("item reported gone should be deleted")
	}
	if it.Title != "two" {
		t.Errorf("placeholder overwrote stored title: %q", it.Title)
	}
	logs := h.deletionLog()
	if len(logs) != 1 || logs[0].Reason != models.ReasonReportedGone || logs[0].Title != "two" {
		t.Errorf("deletion log = %+v", logs)
	}

	t.Run("not logged again", func(t *testing.T) {
		again := h.mustRun(All, Options{})
		if again.Deleted != 0 || len(h.deletionLog()) != 1 {
			t.Errorf("repeat run deleted=%d log=%d", again.Deleted, len(h.deletionLog()))
		}
	})
}

func TestUnconfirmedPlaceholder(t *testing.T) {
	h := newHarness(t, 20)
	h.setListing("100", "A", entry("BV1", "one"))
	h.mustRun(All, Options{})

	h.src.SetEntries("100", placeholder("BV1"))
	h.src.FailDetail("BV1", fmt.Errorf("%w: timeout", source.ErrTransient))

	summary := h.mustRun(All, Options{})
	if summary.Deleted != 0 {
		t.Fatalf("unconfirmed placeholder must not delete: %+v", summary)
	}
	if len(summary.Errors) == 0 {
		t.Error("detail failure should be recorded")
	}
	it := h.item("BV1")
	if it.IsDeleted || it.Title != "one" {
		t.Errorf("item = %+v", it)
	}
}

func TestConfirmedPlaceholderUsesDetail(t *testing.T) {
	h := newHarness(t, 20)
	h.setListing("100", "A", placeholder("BV9"))
	detail := entry("BV9", "restored title")
	h.src.SetDetail(detail)
	h.src.SetAsset(detail.Item.CoverURL, []byte("img"))

	summary := h.mustRun(All, Options{})
	if summary.Added != 1 || summary.Deleted != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if got := h.item("BV9").Title; got != "restored title" {
		t.Errorf("title = %q", got)
	}
}

func TestSkippedPageSuppressesDeletion(t *testing.T) {
	h := newHarness(t, 2)
	h.setListing("100", "A", entry("BV1", "1"), entry("BV2", "2"), entry("BV3", "3"), entry("BV4", "4"))
	h.mustRun(All, Options{})

	h.src.RemoveEntry("100", "BV4")
	h.src.FailPage("100", 2, fmt.Errorf("%w: 502", source.ErrTransient))

	summary, err := h.run(All, Options{})
	if err != nil {
		t.Fatalf("page-level failure must not abort the run: %v", err)
	}
	if summary.Deleted != 0 {
		t.Fatalf("deletion ran on an incomplete listing: %+v", summary)
	}
	res := summary.Collections[0]
	if res.PagesSkipped != 1 || res.ListingComplete {
		t.Errorf("collection result = %+v", res)
	}
	sc := h.context(res.ContextID)
	if sc.Status != syncctx.StatusCompleted || len(sc.SkippedPages) != 1 || sc.SkippedPages[0] != 2 {
		t.Errorf("context = status %s skipped %v", sc.Status, sc.SkippedPages)
	}

	h.src.FailPage("100", 2, nil)
	summary = h.mustRun(All, Options{})
	if summary.Deleted != 1 || !h.item("BV4").IsDeleted || h.item("BV3").IsDeleted {
		t.Errorf("after recovery summary = %+v", summary)
	}
}

func TestConsecutivePageFailuresStopPaging(t *testing.T) {
	h := newHarness(t, 1)
	var entries []source.Entry
	for i := 1; i <= 6; i++ {
		entries = append(entries, entry(fmt.Sprintf("BV%d", i), "x"))
	}
	h.setListing("100", "A", entries...)
	for page := 2; page <= 4; page++ {
		h.src.FailPage("100", page, fmt.Errorf("%w: flaky", source.ErrTransient))
	}

	summary, err := h.run(All, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := summary.Collections[0]
	if res.PagesProcessed != 1 || res.PagesSkipped != 3 {
		t.Errorf("pages processed=%d skipped=%d", res.PagesProcessed, res.PagesSkipped)
	}
	if n := h.src.CountRequests("list:100:5"); n != 0 {
		t.Errorf("paging continued after 3 consecutive failures (%d requests for page 5)", n)
	}
}

func TestPageCapSuppressesDeletion(t *testing.T) {
	h := newHarness(t, 1)
	h.setListing("100", "A", entry("BV1", "1"), entry("BV2", "2"), entry("BV3", "3"))
	h.mustRun(All, Options{})

	h.src.SetPageLimit(1)
	h.src.RemoveEntry("100", "BV2")
	h.src.ResetRequests()
	summary := h.mustRun(All, Options{})
	res := summary.Collections[0]
	if summary.Deleted != 0 || res.ListingComplete {
		t.Fatalf("truncated listing must not delete: %+v", res)
	}
	if n := h.src.CountRequests("list:100:2"); n != 1 {
		t.Errorf("page 2 requests = %d, want the capped request", n)
	}
	sc := h.context(res.ContextID)
	if !sc.Truncated || sc.ListingComplete() || sc.Status != syncctx.StatusCompleted {
		t.Errorf("context = status %s truncated %v", sc.Status, sc.Truncated)
	}
	for _, code := range []string{"BV1", "BV2", "BV3"} {
		if h.item(code).IsDeleted {
			t.Errorf("%s deleted by a truncated listing", code)
		}
	}
}

func TestResumeAfterCancel(t *testing.T) {
	h := newHarness(t, 1)
	h.setListing("100", "A", entry("BV1", "1"), entry("BV2", "2"), entry("BV3", "3"))

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	interrupting := h.newEngine(&cancelAfterSource{Source: h.src, page: 2, cancel: cancel})

	h.clock.Advance(time.Hour)
	partial, err := interrupting.Run(ctx, All, Options{})
	if !errors.Is(err, ErrRunCancelled) {
		t.Fatalf("expected ErrRunCancelled, got %v", err)
	}
	if !partial.Cancelled || partial.Added != 2 {
		t.Fatalf("partial summary = %+v", partial)
	}

	sc := h.context(partial.Collections[0].ContextID)
	if sc.Status != syncctx.StatusInProgress || sc.NextPage != 3 || sc.HeartbeatAt != nil {
		t.Fatalf("cancelled context = status %s next %d heartbeat %v", sc.Status, sc.NextPage, sc.HeartbeatAt)
	}

	h.src.ResetRequests()
	resumed := h.mustRun(All, Options{})
	res := resumed.Collections[0]
	if !res.Resumed || res.ContextID != sc.ID {
		t.Fatalf("second run did not resume: %+v", res)
	}
	if n := h.src.CountRequests("list:100:1"); n != 0 {
		t.Errorf("resumed run restarted at page 1")
	}
	if n := h.src.CountRequests("list:100:3"); n != 1 {
		t.Errorf("resumed run did not fetch page 3")
	}
	if resumed.Added != 1 || resumed.Deleted != 0 {
		t.Errorf("resumed summary = %+v", resumed)
	}

	done := h.context(sc.ID)
	if done.Status != syncctx.StatusCompleted || done.Added != 3 || done.PagesProcessed != 3 {
		t.Errorf("completed context = %+v", done)
	}
	counts, _ := h.store.Counts(h.ctx)
	if counts.Items != 3 || counts.Deleted != 0 {
		t.Errorf("store counts = %+v", counts)
	}
}

func TestResumeAfterExhaustedListing(t *testing.T) {
	h := newHarness(t, 1)
	h.setListing("100", "A", entry("BV1", "1"), entry("BV2", "2"), entry("BV3", "3"))
	h.mustRun(All, Options{})

	h.src.SetPageLimit(2)
	h.src.RemoveEntry("100", "BV2")

	crashing := New(Deps{
		Store:    h.store,
		Contexts: &crashAfterExhaustedStore{Store: h.contexts},
		Source:   h.src,
	}, EngineConfig{
		LivenessTimeout:   2 * time.Minute,
		HeartbeatInterval: time.Hour,
	}).WithClock(h.clock.Now)

	h.clock.Advance(time.Hour)
	if _, err := crashing.Run(h.ctx, All, Options{}); err == nil {
		t.Fatal("expected the crashing run to fail")
	}
	active, err := h.contexts.Active(h.ctx, "100")
	if err != nil || active == nil {
		t.Fatalf("Active = %v, %v", active, err)
	}
	if !active.Exhausted || active.NextPage != 3 || active.Status != syncctx.StatusInProgress {
		t.Fatalf("crashed context = status %s next %d exhausted %v", active.Status, active.NextPage, active.Exhausted)
	}

	h.src.ResetRequests()
	summary := h.mustRun(All, Options{})
	res := summary.Collections[0]
	if !res.Resumed || res.ContextID != active.ID {
		t.Fatalf("second run did not resume: %+v", res)
	}
	for _, req := range h.src.Requests() {
		if strings.HasPrefix(req, "list:100:") {
			t.Errorf("resumed run paged an exhausted listing: %s", req)
		}
	}
	if !res.ListingComplete || summary.Deleted != 1 || !h.item("BV2").IsDeleted {
		t.Fatalf("resumed run result = %+v", res)
	}
	if h.item("BV1").IsDeleted || h.item("BV3").IsDeleted {
		t.Error("items listed before the crash were deleted")
	}
	sc := h.context(active.ID)
	if sc.Status != syncctx.StatusCompleted || sc.Truncated {
		t.Errorf("context = status %s truncated %v", sc.Status, sc.Truncated)
	}
}

func TestLiveContextRejectsRun(t *testing.T) {
	h := newHarness(t, 20)
	h.setListing("100", "A", entry("BV1", "1"))

	h.clock.Advance(time.Hour)
	foreign := syncctx.New("100", "A", "other-run", h.clock.Now())
	if err := foreign.Begin(h.clock.Now()); err != nil {
		t.Fatal(err)
	}
	if err := h.contexts.Save(h.ctx, foreign); err != nil {
		t.Fatal(err)
	}

	_, err := h.engine.Run(h.ctx, Scope{CollectionID: "100"}, Options{})
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}

	t.Run("all scope skips the collection", func(t *testing.T) {
		summary, err := h.engine.Run(h.ctx, All, Options{})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if summary.CollectionsProcessed != 0 || len(summary.Errors) != 1 {
			t.Errorf("summary = %+v", summary)
		}
	})

	t.Run("stale owner is adopted", func(t *testing.T) {
		h.clock.Advance(10 * time.Minute)
		summary, err := h.engine.Run(h.ctx, Scope{CollectionID: "100"}, Options{})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		res := summary.Collections[0]
		if !res.Resumed || res.ContextID != foreign.ID {
			t.Errorf("stale context not adopted: %+v", res)
		}
	})
}

func TestRunLevelErrors(t *testing.T) {
	t.Run("unknown collection", func(t *testing.T) {
		h := newHarness(t, 20)
		h.setListing("100", "A", entry("BV1", "1"))
		_, err := h.run(Scope{CollectionID: "999"}, Options{})
		if !errors.Is(err, ErrCollectionNotFound) {
			t.Fatalf("expected ErrCollectionNotFound, got %v", err)
		}
	})

	t.Run("source unavailable fails the context", func(t *testing.T) {
		h := newHarness(t, 20)
		h.setListing("100", "A", entry("BV1", "1"))
		h.src.FailPage("100", 1, fmt.Errorf("%w: cookie expired", source.ErrUnavailable))

		summary, err := h.run(All, Options{})
		if !errors.Is(err, source.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		sc := h.context(summary.Collections[0].ContextID)
		if sc.Status != syncctx.StatusFailed || sc.LastError == "" {
			t.Errorf("context = %s %q", sc.Status, sc.LastError)
		}

		h.src.FailPage("100", 1, nil)
		next := h.mustRun(All, Options{})
		if next.Collections[0].Resumed {
			t.Error("a failed context is not resumed without reopen")
		}
	})

	t.Run("detail lookup unavailable fails the context", func(t *testing.T) {
		h := newHarness(t, 20)
		h.setListing("100", "A", entry("BV1", "one"))
		h.mustRun(All, Options{})

		h.src.SetEntries("100", placeholder("BV1"))
		h.src.FailDetail("BV1", fmt.Errorf("%w: circuit open", source.ErrUnavailable))

		summary, err := h.run(All, Options{})
		if !errors.Is(err, source.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		sc := h.context(summary.Collections[0].ContextID)
		if sc.Status != syncctx.StatusFailed {
			t.Errorf("context status = %s, want failed", sc.Status)
		}
		if h.item("BV1").IsDeleted {
			t.Error("item deleted after an aborted run")
		}
	})

	t.Run("listing collections fails", func(t *testing.T) {
		h := newHarness(t, 20)
		h.src.FailListCollections(source.ErrUnavailable)
		if _, err := h.run(All, Options{}); !errors.Is(err, source.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("schema not current", func(t *testing.T) {
		st, err := store.Open(context.Background(), store.Config{Path: filepath.Join(t.TempDir(), "raw.db")})
		if err != nil {
			t.Fatal(err)
		}
		defer st.Close()
		e := New(Deps{Store: st, Contexts: syncctx.NewMemoryStore(), Source: source.NewMemorySource(5)}, EngineConfig{})
		if _, err := e.Run(context.Background(), All, Options{}); !errors.Is(err, store.ErrSchemaNotCurrent) {
			t.Fatalf("expected ErrSchemaNotCurrent, got %v", err)
		}
	})
}

func TestCovers(t *testing.T) {
	t.Run("force re-downloads", func(t *testing.T) {
		h := newHarness(t, 20)
		h.setListing("100", "A", entry("BV1", "1"), entry("BV2", "2"))
		h.mustRun(All, Options{})
		forced := h.mustRun(All, Options{ForceCovers: true})
		if forced.CoversDownloaded != 2 {
			t.Errorf("forced covers = %d, want 2", forced.CoversDownloaded)
		}
	})

	t.Run("changed url re-downloads", func(t *testing.T) {
		h := newHarness(t, 20)
		h.setListing("100", "A", entry("BV1", "1"))
		h.mustRun(All, Options{})

		moved := entry("BV1", "1")
		moved.Item.CoverURL = "https://cdn.test/new/BV1.png"
		h.setListing("100", "A", moved)
		summary := h.mustRun(All, Options{})
		if summary.CoversDownloaded != 1 {
			t.Errorf("covers = %d, want 1", summary.CoversDownloaded)
		}
		if got := h.item("BV1").LocalCoverPath; got != filepath.Join(h.coverDir, "BV1.png") {
			t.Errorf("cover path = %q", got)
		}
	})

	t.Run("failure is item level", func(t *testing.T) {
		h := newHarness(t, 20)
		h.src.AddCollection(source.RemoteCollection{ID: "100", Title: "A"})
		h.src.SetEntries("100", entry("BV1", "1"), entry("BV2", "2"))
		h.src.SetAsset("https://cdn.test/BV1.jpg", []byte("img"))

		summary, err := h.run(All, Options{})
		if err != nil {
			t.Fatalf("cover failure aborted the run: %v", err)
		}
		if summary.Added != 2 || summary.CoversDownloaded != 1 || len(summary.Errors) != 1 {
			t.Errorf("summary = %+v", summary)
		}
		if h.item("BV2").LocalCoverPath != "" {
			t.Error("failed cover must not record a path")
		}
	})
}

func TestCancelBeforeFirstCollection(t *testing.T) {
	h := newHarness(t, 20)
	h.setListing("100", "A", entry("BV1", "1"))
	ctx, cancel := context.WithCancel(h.ctx)
	cancel()

	summary, err := h.engine.Run(ctx, All, Options{})
	if !errors.Is(err, ErrRunCancelled) {
		t.Fatalf("expected ErrRunCancelled, got %v", err)
	}
	if !summary.Cancelled || summary.CollectionsProcessed != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestScopeString(t *testing.T) {
	if All.String() != "all" {
		t.Errorf("All = %q", All.String())
	}
	if s := (Scope{CollectionID: "7"}).String(); s != "collection:7" {
		t.Errorf("scope = %q", s)
	}
}
