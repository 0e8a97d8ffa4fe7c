// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/favmirror/internal/assets"
	"github.com/tomtom215/favmirror/internal/logging"
	"github.com/tomtom215/favmirror/internal/metrics"
	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/source"
	"github.com/tomtom215/favmirror/internal/store"
	"github.com/tomtom215/favmirror/internal/syncctx"
)

var (
	// ErrRunInProgress is returned when a collection is owned by another live run.
	ErrRunInProgress = errors.New("sync already in progress for collection")

	// ErrCollectionNotFound is returned when the scoped collection does not exist remotely.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrRunCancelled is returned with a partial summary when a run was stopped.
	ErrRunCancelled = errors.New("sync run cancelled")
)

// defaultMaxPageFailures is how many consecutive listing pages may fail
// before the engine stops paging a collection.
const defaultMaxPageFailures = 3

// Scope selects the collections of a run. An empty CollectionID means all.
type Scope struct {
	CollectionID string `json:"collection_id,omitempty"`
}

// All is the scope covering every collection.
var All = Scope{}

// String returns "all" or "collection:<id>".
func (s Scope) String() string {
	if s.CollectionID == "" {
		return "all"
	}
	return "collection:" + s.CollectionID
}

// Options tune a single run.
type Options struct {
	// ForceCovers re-downloads covers that are already cached.
	ForceCovers bool `json:"force_covers"`
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Store    *store.Store
	Contexts syncctx.Store
	Source   source.Source

	// Covers may be nil when cover caching is disabled.
	Covers *assets.Cache
}

// EngineConfig holds engine tuning read at construction.
type EngineConfig struct {
	CoversEnabled     bool
	LivenessTimeout   time.Duration
	HeartbeatInterval time.Duration

	// MaxPageFailures defaults to 3.
	MaxPageFailures int
}

// Engine runs incremental sync passes. One Engine may serve several
// sequential or concurrent runs; a collection is never processed by two runs
// of the same process at once.
type Engine struct {
	store    *store.Store
	contexts syncctx.Store
	source   source.Source
	covers   *assets.Cache
	cfg      EngineConfig
	now      func() time.Time

	mu      sync.Mutex
	running map[string]string // collection id -> run id
}

// New creates an engine.
func New(deps Deps, cfg EngineConfig) *Engine {
	if cfg.MaxPageFailures <= 0 {
		cfg.MaxPageFailures = defaultMaxPageFailures
	}
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = 2 * time.Minute
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.LivenessTimeout / 4
	}
	if deps.Covers == nil {
		cfg.CoversEnabled = false
	}
	return &Engine{
		store:    deps.Store,
		contexts: deps.Contexts,
		source:   deps.Source,
		covers:   deps.Covers,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		running:  make(map[string]string),
	}
}

// WithClock replaces the engine clock. Use it in tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Run performs one sync pass over scope. The summary is returned even when
// the run fails or is cancelled, holding whatever was processed.
func (e *Engine) Run(ctx context.Context, scope Scope, opts Options) (summary *models.RunSummary, err error) {
	runID := logging.GenerateRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	log := logging.Ctx(ctx)

	summary = models.NewRunSummary(runID, scope.String(), e.now())
	log.Info().Str("scope", summary.Scope).Bool("force_covers", opts.ForceCovers).Msg("Sync run started")

	defer func() {
		summary.FinishedAt = e.now()
		result := "completed"
		switch {
		case errors.Is(err, ErrRunCancelled):
			result = "cancelled"
			summary.Cancelled = true
		case err != nil:
			result = "failed"
			metrics.RecordSyncError("run")
		}
		metrics.RecordSyncRun(summary.Duration(), metrics.SyncCounts{
			Added:       summary.Added,
			Updated:     summary.Updated,
			Deleted:     summary.Deleted,
			Covers:      summary.CoversDownloaded,
			Errors:      len(summary.Errors),
			Collections: summary.CollectionsProcessed,
		}, result)

		ev := log.Info()
		if err != nil && result == "failed" {
			ev = log.Error().Err(err)
		}
		ev.Str("result", result).
			Int("collections", summary.CollectionsProcessed).
			Int("added", summary.Added).
			Int("updated", summary.Updated).
			Int("deleted", summary.Deleted).
			Int("covers", summary.CoversDownloaded).
			Int("errors", len(summary.Errors)).
			Dur("duration", summary.Duration()).
			Msg("Sync run finished")
	}()

	if ctx.Err() != nil {
		return summary, ErrRunCancelled
	}
	if err := e.store.EnsureCurrent(ctx); err != nil {
		if ctx.Err() != nil {
			return summary, ErrRunCancelled
		}
		summary.AddError(err.Error())
		return summary, fmt.Errorf("store not ready: %w", err)
	}

	remotes, err := e.source.ListCollections(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return summary, ErrRunCancelled
		}
		summary.AddError(err.Error())
		return summary, fmt.Errorf("failed to list collections: %w", err)
	}

	targets := remotes
	if scope.CollectionID != "" {
		targets = nil
		for _, rc := range remotes {
			if rc.ID == scope.CollectionID {
				targets = append(targets, rc)
				break
			}
		}
		if len(targets) == 0 {
			summary.AddError(fmt.Sprintf("collection %s not found", scope.CollectionID))
			return summary, fmt.Errorf("%w: %s", ErrCollectionNotFound, scope.CollectionID)
		}
	}

	for _, rc := range targets {
		if ctx.Err() != nil {
			return summary, ErrRunCancelled
		}

		res, err := e.syncCollection(ctx, runID, rc, opts)
		if err == nil {
			summary.AddCollection(res)
			continue
		}

		switch {
		case errors.Is(err, ErrRunCancelled):
			summary.AddCollection(res)
			return summary, err
		case errors.Is(err, ErrRunInProgress) && scope.CollectionID == "":
			// Another live run owns this collection; the rest can still proceed.
			log.Warn().Err(err).Str("collection_id", rc.ID).Msg("Skipping collection owned by a live run")
			summary.AddError(err.Error())
		default:
			res.Errors = append(res.Errors, err.Error())
			summary.AddCollection(res)
			return summary, err
		}
	}

	return summary, nil
}

// acquire claims a collection for runID within this process.
func (e *Engine) acquire(collectionID, runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if owner, ok := e.running[collectionID]; ok {
		return fmt.Errorf("%w: %s (run %s)", ErrRunInProgress, collectionID, owner)
	}
	e.running[collectionID] = runID
	return nil
}

func (e *Engine) release(collectionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, collectionID)
}

// isRunLevel reports whether a source error must abort the run.
func isRunLevel(err error) bool {
	return errors.Is(err, source.ErrUnavailable)
}
