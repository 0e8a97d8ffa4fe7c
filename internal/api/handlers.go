// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package api

import (
	"context"
	"time"

	"github.com/tomtom215/favmirror/internal/models"
	favsync "github.com/tomtom215/favmirror/internal/sync"
	"github.com/tomtom215/favmirror/internal/syncctx"
	"github.com/tomtom215/favmirror/internal/tasks"
)

// MirrorReader is the read side of the local store. *store.Store implements it.
type MirrorReader interface {
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	EnsureCurrent(ctx context.Context) error
	ListCollections(ctx context.Context) ([]models.Collection, error)
	CollectionByRemoteID(ctx context.Context, remoteID string) (*models.Collection, error)
	ListItems(ctx context.Context, collectionID int64, includeDeleted bool, limit, offset int) ([]models.Item, error)
	DeletionLogs(ctx context.Context, limit int) ([]models.DeletionRecord, error)
}

// SyncController starts runs and reports on them. *sync.Manager implements it.
type SyncController interface {
	TriggerAsync(scope favsync.Scope, opts favsync.Options) error
	LastRun() (*models.RunSummary, error)
	LastSyncTime() time.Time
	IsRunning() bool
}

// ContextMaintainer lists and cleans sync contexts. *syncctx.Maintenance implements it.
type ContextMaintainer interface {
	List(ctx context.Context, filter syncctx.Filter) ([]syncctx.View, error)
	Clean(ctx context.Context, id string) (*syncctx.Context, error)
}

// TaskQueue submits and manages queued sync tasks. *tasks.Queue implements it.
type TaskQueue interface {
	Submit(ctx context.Context, req tasks.Request) (*tasks.Task, error)
	Get(ctx context.Context, id string) (*tasks.Task, error)
	List(ctx context.Context, filter tasks.Filter) ([]*tasks.Task, error)
	Cancel(ctx context.Context, id string) (*tasks.Task, error)
	Retry(ctx context.Context, id string) (*tasks.Task, error)
}

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	store     MirrorReader
	sync      SyncController
	contexts  ContextMaintainer
	tasks     TaskQueue
	version   string
	startTime time.Time
}

// NewHandler creates a handler. sync and queue may be nil, in which case
// their endpoints report unavailable.
func NewHandler(store MirrorReader, sync SyncController, contexts ContextMaintainer, queue TaskQueue, version string) *Handler {
	return &Handler{
		store:     store,
		sync:      sync,
		contexts:  contexts,
		tasks:     queue,
		version:   version,
		startTime: time.Now(),
	}
}
