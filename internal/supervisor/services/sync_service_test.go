// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type mockSyncManager struct {
	starts     atomic.Int32
	stopped    atomic.Bool
	failStarts int32
	stopErr    error
}

func (m *mockSyncManager) Start(context.Context) error {
	if m.starts.Add(1) <= m.failStarts {
		return errors.New("cron: bad spec")
	}
	return nil
}

func (m *mockSyncManager) Stop() error {
	m.stopped.Store(true)
	return m.stopErr
}

var _ suture.Service = (*SyncService)(nil)

func TestSyncService(t *testing.T) {
	t.Run("stops manager on cancellation", func(t *testing.T) {
		mgr := &mockSyncManager{}
		svc := NewSyncService(mgr)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()
		for mgr.starts.Load() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve = %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Serve did not return")
		}
		if !mgr.stopped.Load() {
			t.Error("manager was not stopped")
		}
	})

	t.Run("start error is returned", func(t *testing.T) {
		mgr := &mockSyncManager{failStarts: 1}
		if err := NewSyncService(mgr).Serve(context.Background()); err == nil {
			t.Fatal("expected start error")
		}
		if mgr.stopped.Load() {
			t.Error("Stop called after failed Start")
		}
	})

	t.Run("stop error is returned", func(t *testing.T) {
		mgr := &mockSyncManager{stopErr: errors.New("stuck")}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := NewSyncService(mgr).Serve(ctx); err == nil || errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want stop error", err)
		}
	})

	t.Run("supervisor retries start", func(t *testing.T) {
		mgr := &mockSyncManager{failStarts: 2}
		sup := suture.New("sync-test", suture.Spec{
			FailureThreshold: 10,
			FailureBackoff:   10 * time.Millisecond,
			Timeout:          100 * time.Millisecond,
		})
		sup.Add(NewSyncService(mgr))

		ctx, cancel := context.WithCancel(context.Background())
		errCh := sup.ServeBackground(ctx)
		deadline := time.Now().Add(2 * time.Second)
		for mgr.starts.Load() < 3 {
			if time.Now().After(deadline) {
				t.Fatalf("starts = %d, want 3", mgr.starts.Load())
			}
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
		<-errCh
	})

	if got := NewSyncService(&mockSyncManager{}).String(); got != "sync-manager" {
		t.Errorf("String = %q", got)
	}
}
