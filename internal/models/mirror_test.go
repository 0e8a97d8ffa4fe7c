// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestIsOfficial(t *testing.T) {
	tests := []struct {
		name     string
		official string
		season   string
		want     bool
	}{
		{"absent", "", "", false},
		{"null", "null", `{"season_id":1}`, false},
		{"empty object", "{}", `{"season_id":1}`, false},
		{"empty array", "[]", "", false},
		{"whitespace only", "  \n", "", false},
		{"present without season", `{"type":1}`, "", true},
		{"present with season", `{"type":1}`, `{"season_id":9}`, true},
		{"scalar payload", `1`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &Item{OfficialInfo: json.RawMessage(tt.official), SeasonInfo: json.RawMessage(tt.season)}
			if got := item.IsOfficial(); got != tt.want {
				t.Errorf("IsOfficial() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSameContent(t *testing.T) {
	pub := time.UnixMilli(1_700_000_000_000)
	base := Item{ShortCode: "BV1xx", Title: "a", Attr: 0, PublishedAt: &pub, SeasonInfo: json.RawMessage("null")}

	t.Run("identical", func(t *testing.T) {
		other := base
		other.SeasonInfo = nil
		other.LocalCoverPath = "covers/BV1xx.jpg"
		if !base.SameContent(&other) {
			t.Error("expected equal content")
		}
	})

	t.Run("title changed", func(t *testing.T) {
		other := base
		other.Title = "b"
		if base.SameContent(&other) {
			t.Error("expected different content")
		}
	})

	t.Run("publish time changed", func(t *testing.T) {
		other := base
		later := pub.Add(time.Second)
		other.PublishedAt = &later
		if base.SameContent(&other) {
			t.Error("expected different content")
		}
	})
}

func TestRunSummaryAddCollection(t *testing.T) {
	s := NewRunSummary("run", "all", time.Now())
	s.AddCollection(CollectionResult{Added: 2, Updated: 1, Errors: []string{"e1"}})
	s.AddCollection(CollectionResult{Deleted: 1, CoversDownloaded: 3,
		Deletions: []DeletionSummary{{ShortCode: "BV1"}}})
	s.AddError("run-level")

	if s.CollectionsProcessed != 2 || s.Added != 2 || s.Updated != 1 || s.Deleted != 1 || s.CoversDownloaded != 3 {
		t.Errorf("unexpected totals: %+v", s)
	}
	if len(s.Errors) != 2 || len(s.Deletions) != 1 {
		t.Errorf("errors=%v deletions=%v", s.Errors, s.Deletions)
	}
}
