// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package syncctx

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/favmirror/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestContextLifecycle(t *testing.T) {
	t.Run("new context is pending at page 1", func(t *testing.T) {
		c := New("100", "Music", "run-1", t0)
		if c.Status != StatusPending {
			t.Errorf("Status = %s, want pending", c.Status)
		}
		if c.NextPage != 1 {
			t.Errorf("NextPage = %d, want 1", c.NextPage)
		}
		if c.ID == "" {
			t.Error("ID is empty")
		}
	})

	t.Run("begin then complete", func(t *testing.T) {
		c := New("100", "Music", "run-1", t0)
		if err := c.Begin(t0); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		if err := c.Begin(t0); err != nil {
			t.Fatalf("second Begin() error = %v", err)
		}
		if err := c.Complete(t0.Add(time.Minute)); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if c.Status != StatusCompleted || c.CompletedAt == nil {
			t.Errorf("Status = %s, CompletedAt = %v", c.Status, c.CompletedAt)
		}
		if c.HeartbeatAt != nil {
			t.Error("completed context still holds a heartbeat")
		}
	})

	t.Run("complete requires in-progress", func(t *testing.T) {
		c := New("100", "Music", "run-1", t0)
		if err := c.Complete(t0); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Complete() on pending error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("fail and reopen", func(t *testing.T) {
		c := New("100", "Music", "run-1", t0)
		_ = c.Begin(t0)
		if err := c.Fail(errors.New("remote unavailable"), t0); err != nil {
			t.Fatalf("Fail() error = %v", err)
		}
		if c.LastError != "remote unavailable" {
			t.Errorf("LastError = %q", c.LastError)
		}
		if err := c.Reopen(t0); err != nil {
			t.Fatalf("Reopen() error = %v", err)
		}
		if c.Status != StatusInProgress {
			t.Errorf("Status = %s, want in-progress", c.Status)
		}
	})

	t.Run("cleaned is terminal", func(t *testing.T) {
		c := New("100", "Music", "run-1", t0)
		_ = c.Begin(t0)
		if err := c.Clean(t0); err != nil {
			t.Fatalf("Clean() error = %v", err)
		}
		if !c.Status.IsTerminal() {
			t.Error("cleaned should be terminal")
		}
		if err := c.Adopt("run-2", t0); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Adopt() on cleaned error = %v", err)
		}
		if err := c.Reopen(t0); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Reopen() on cleaned error = %v", err)
		}
	})

	t.Run("pending cannot be cleaned", func(t *testing.T) {
		c := New("100", "Music", "run-1", t0)
		if err := c.Clean(t0); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Clean() on pending error = %v", err)
		}
	})
}

func TestContextLiveness(t *testing.T) {
	timeout := 2 * time.Minute

	c := New("100", "Music", "run-1", t0)
	_ = c.Begin(t0)

	if !c.IsLive(t0.Add(time.Minute), timeout) {
		t.Error("expected live within timeout")
	}
	if got := c.EffectiveStatus(t0.Add(time.Minute), timeout); got != StatusInProgress {
		t.Errorf("EffectiveStatus = %s, want in-progress", got)
	}
	if c.IsLive(t0.Add(3*time.Minute), timeout) {
		t.Error("expected stale after timeout")
	}
	if got := c.EffectiveStatus(t0.Add(3*time.Minute), timeout); got != StatusInterrupted {
		t.Errorf("EffectiveStatus = %s, want interrupted", got)
	}

	c.Heartbeat(t0.Add(3 * time.Minute))
	if !c.IsLive(t0.Add(4*time.Minute), timeout) {
		t.Error("heartbeat should restore liveness")
	}

	c.Release(t0.Add(4 * time.Minute))
	if c.IsLive(t0.Add(4*time.Minute), timeout) {
		t.Error("released context should not be live")
	}
	if got := c.EffectiveStatus(t0.Add(4*time.Minute), timeout); got != StatusInterrupted {
		t.Errorf("released EffectiveStatus = %s, want interrupted", got)
	}
}

func TestContextPaging(t *testing.T) {
	c := New("100", "Music", "run-1", t0)
	_ = c.Begin(t0)
	c.DeclaredCount = 50

	c.Checkpoint(1, 20, t0)
	c.SkipPage(2, "timeout", t0)
	c.Checkpoint(3, 10, t0)

	if c.NextPage != 4 {
		t.Errorf("NextPage = %d, want 4", c.NextPage)
	}
	if c.PagesProcessed != 2 {
		t.Errorf("PagesProcessed = %d, want 2", c.PagesProcessed)
	}
	if c.ListingComplete() {
		t.Error("ListingComplete() = true with a skipped page")
	}
	if len(c.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry", c.Errors)
	}

	p := c.Progress()
	if p.SeenCount != 30 || p.Percent != 60 {
		t.Errorf("Progress = %+v, want seen 30 at 60%%", p)
	}

	t.Run("truncated listing is incomplete", func(t *testing.T) {
		d := New("100", "Music", "run-1", t0)
		d.MarkTruncated()
		if d.ListingComplete() {
			t.Error("ListingComplete() = true for truncated listing")
		}
	})

	t.Run("checkpoint never moves backwards", func(t *testing.T) {
		d := New("100", "Music", "run-1", t0)
		d.Checkpoint(5, 1, t0)
		d.Checkpoint(2, 1, t0)
		if d.NextPage != 6 {
			t.Errorf("NextPage = %d, want 6", d.NextPage)
		}
	})
}

func TestContextRecordErrorBounded(t *testing.T) {
	c := New("100", "Music", "run-1", t0)
	for i := 0; i < maxRecordedErrors+7; i++ {
		c.RecordError("boom")
	}
	if len(c.Errors) != maxRecordedErrors {
		t.Errorf("len(Errors) = %d, want %d", len(c.Errors), maxRecordedErrors)
	}
	if c.DroppedErrors != 7 {
		t.Errorf("DroppedErrors = %d, want 7", c.DroppedErrors)
	}
}

func TestContextClone(t *testing.T) {
	c := New("100", "Music", "run-1", t0)
	c.SkipPage(2, "x", t0)
	c.RecordDeletion(models.DeletionSummary{ShortCode: "BV1"})

	cp := c.Clone()
	cp.SkippedPages[0] = 99
	cp.Deletions[0].ShortCode = "changed"
	*cp.HeartbeatAt = t0.Add(time.Hour)

	if c.SkippedPages[0] != 2 {
		t.Error("Clone shares SkippedPages")
	}
	if c.Deletions[0].ShortCode != "BV1" {
		t.Error("Clone shares Deletions")
	}
	if !c.HeartbeatAt.Equal(t0) {
		t.Error("Clone shares HeartbeatAt")
	}
	if c.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", c.Deleted)
	}
}
