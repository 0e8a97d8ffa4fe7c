// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/syncctx"
)

// blockingRunner blocks each run until release is closed or ctx ends.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, scope Scope, _ Options) (*models.RunSummary, error) {
	r.calls.Add(1)
	summary := models.NewRunSummary("run-test", scope.String(), time.Now())
	r.started <- struct{}{}
	select {
	case <-r.release:
		summary.FinishedAt = time.Now()
		return summary, r.err
	case <-ctx.Done():
		summary.FinishedAt = time.Now()
		summary.Cancelled = true
		return summary, ErrRunCancelled
	}
}

func waitStarted(t *testing.T, r *blockingRunner) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}
}

func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for m.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("run did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManagerRejectsConcurrentRuns(t *testing.T) {
	runner := newBlockingRunner()
	m, err := NewManager(runner, nil, ManagerConfig{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = m.Stop() }()

	if err := m.TriggerAsync(All, Options{}); err != nil {
		t.Fatalf("TriggerAsync: %v", err)
	}
	waitStarted(t, runner)
	if !m.IsRunning() {
		t.Error("IsRunning = false during a run")
	}

	if err := m.TriggerAsync(All, Options{}); !errors.Is(err, ErrSyncBusy) {
		t.Errorf("second async trigger = %v, want ErrSyncBusy", err)
	}
	if _, err := m.TriggerSync(context.Background(), Scope{CollectionID: "1"}, Options{}); !errors.Is(err, ErrSyncBusy) {
		t.Errorf("sync trigger = %v, want ErrSyncBusy", err)
	}

	close(runner.release)
	waitIdle(t, m)

	last, lastErr := m.LastRun()
	if last == nil || lastErr != nil || last.Scope != "all" {
		t.Errorf("LastRun = %+v, %v", last, lastErr)
	}
	if m.LastSyncTime().IsZero() {
		t.Error("LastSyncTime not recorded after a successful run")
	}
	if n := runner.calls.Load(); n != 1 {
		t.Errorf("runner called %d times, want 1", n)
	}
}

func TestManagerRecordsFailure(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = errors.New("boom")
	close(runner.release)
	m, _ := NewManager(runner, nil, ManagerConfig{})

	if _, err := m.TriggerSync(context.Background(), All, Options{}); err == nil {
		t.Fatal("expected error")
	}
	<-runner.started
	_, lastErr := m.LastRun()
	if lastErr == nil {
		t.Error("LastRun error not recorded")
	}
	if !m.LastSyncTime().IsZero() {
		t.Error("failed run must not update LastSyncTime")
	}
}

func TestManagerStopCancelsRun(t *testing.T) {
	runner := newBlockingRunner()
	m, _ := NewManager(runner, nil, ManagerConfig{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.TriggerAsync(All, Options{}); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, runner)

	done := make(chan struct{})
	go func() {
		_ = m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	last, err := m.LastRun()
	if !errors.Is(err, ErrRunCancelled) || last == nil || !last.Cancelled {
		t.Errorf("LastRun = %+v, %v", last, err)
	}
	if err := m.TriggerAsync(All, Options{}); !errors.Is(err, ErrRunCancelled) {
		t.Errorf("trigger after stop = %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestManagerSchedule(t *testing.T) {
	t.Run("invalid spec", func(t *testing.T) {
		if _, err := NewManager(newBlockingRunner(), nil, ManagerConfig{ScheduleEnabled: true, Spec: "every day"}); err == nil {
			t.Error("expected invalid schedule error")
		}
	})

	t.Run("run on startup", func(t *testing.T) {
		runner := newBlockingRunner()
		close(runner.release)
		m, err := NewManager(runner, nil, ManagerConfig{ScheduleEnabled: true, Spec: "@every 1h", RunOnStartup: true})
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		waitStarted(t, runner)
		if err := m.Stop(); err != nil {
			t.Fatal(err)
		}
		if last, _ := m.LastRun(); last == nil {
			t.Error("startup run not recorded")
		}
	})

	t.Run("start twice", func(t *testing.T) {
		m, _ := NewManager(newBlockingRunner(), nil, ManagerConfig{})
		if err := m.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		defer func() { _ = m.Stop() }()
		if err := m.Start(context.Background()); err == nil {
			t.Error("second Start should fail")
		}
	})
}

func TestManagerPrunesAfterRun(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	contexts := syncctx.NewMemoryStore()
	ctx := context.Background()

	old := syncctx.New("1", "old", "run-a", now.Add(-60*24*time.Hour))
	_ = old.Begin(old.StartedAt)
	_ = old.Complete(old.StartedAt)
	recent := syncctx.New("2", "recent", "run-b", now.Add(-time.Hour))
	_ = recent.Begin(recent.StartedAt)
	_ = recent.Complete(recent.StartedAt)
	for _, c := range []*syncctx.Context{old, recent} {
		if err := contexts.Save(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	maint := syncctx.NewMaintenance(contexts, time.Minute).WithClock(func() time.Time { return now })
	runner := newBlockingRunner()
	close(runner.release)
	m, _ := NewManager(runner, maint, ManagerConfig{ContextRetention: 30 * 24 * time.Hour})

	if _, err := m.TriggerSync(ctx, All, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := contexts.Get(ctx, old.ID); !errors.Is(err, syncctx.ErrNotFound) {
		t.Errorf("old context not pruned: %v", err)
	}
	if _, err := contexts.Get(ctx, recent.ID); err != nil {
		t.Errorf("recent context pruned: %v", err)
	}
}
