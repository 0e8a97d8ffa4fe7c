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

	"github.com/rs/zerolog"

	"github.com/tomtom215/favmirror/internal/logging"
	"github.com/tomtom215/favmirror/internal/metrics"
	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/source"
	"github.com/tomtom215/favmirror/internal/store"
	"github.com/tomtom215/favmirror/internal/syncctx"
)

// collectionRun is the state of one collection within a run.
type collectionRun struct {
	runID    string
	remote   source.RemoteCollection
	rowID    int64
	sc       *syncctx.Context
	opts     Options
	res      *models.CollectionResult
	log      *zerolog.Logger
	stopBeat func()
}

func (r *collectionRun) recordError(msg string) {
	r.sc.RecordError(msg)
	r.res.Errors = append(r.res.Errors, msg)
}

func (r *collectionRun) recordDeletion(d models.DeletionSummary) {
	r.sc.RecordDeletion(d)
	r.res.Deletions = append(r.res.Deletions, d)
	r.res.Deleted++
}

// syncCollection mirrors one collection. The result is meaningful even when
// an error is returned.
func (e *Engine) syncCollection(ctx context.Context, runID string, rc source.RemoteCollection, opts Options) (models.CollectionResult, error) {
	res := models.CollectionResult{CollectionID: rc.ID, Title: rc.Title}

	if err := e.acquire(rc.ID, runID); err != nil {
		return res, err
	}
	defer e.release(rc.ID)

	ctx = logging.ContextWithCollection(ctx, rc.ID)
	log := logging.Ctx(ctx)

	// Store work must finish once begun, even when the caller cancels.
	storeCtx := context.WithoutCancel(ctx)

	var rowID int64
	err := e.store.WithNamedTx(storeCtx, "collection", func(tx *store.Tx) error {
		var err error
		rowID, err = tx.UpsertCollection(storeCtx, rc.Model(), e.now())
		return err
	})
	if err != nil {
		return res, fmt.Errorf("failed to store collection %s: %w", rc.ID, err)
	}

	sc, resumed, err := e.openContext(storeCtx, runID, rc)
	if err != nil {
		return res, err
	}
	res.ContextID = sc.ID
	res.Resumed = resumed
	if rc.MediaCount > 0 {
		sc.DeclaredCount = rc.MediaCount
	}

	run := &collectionRun{
		runID:  runID,
		remote: rc,
		rowID:  rowID,
		sc:     sc,
		opts:   opts,
		res:    &res,
		log:    log,
	}
	run.stopBeat = e.startHeartbeat(storeCtx, sc.ID)
	defer run.stopBeat()

	if resumed {
		log.Info().Str("context_id", sc.ID).Int("next_page", sc.NextPage).Msg("Resuming sync context")
	} else {
		log.Info().Str("context_id", sc.ID).Msg("Sync context opened")
	}

	if err := e.pageListing(ctx, run); err != nil {
		return res, err
	}

	if sc.ListingComplete() {
		if err := e.detectDeletions(storeCtx, run); err != nil {
			return res, e.failCollection(storeCtx, run, err)
		}
	} else {
		log.Warn().
			Ints("skipped_pages", sc.SkippedPages).
			Bool("truncated", sc.Truncated).
			Msg("Listing incomplete, deletion detection skipped")
	}

	run.stopBeat()
	now := e.now()
	if err := sc.Begin(now); err != nil {
		return res, e.failCollection(storeCtx, run, err)
	}
	if err := sc.Complete(now); err != nil {
		return res, e.failCollection(storeCtx, run, err)
	}
	err = e.store.WithNamedTx(storeCtx, "collection", func(tx *store.Tx) error {
		return tx.SetCollectionSynced(storeCtx, rowID, now)
	})
	if err != nil {
		return res, e.failCollection(storeCtx, run, err)
	}
	if err := e.contexts.Save(storeCtx, sc); err != nil {
		return res, fmt.Errorf("failed to save sync context %s: %w", sc.ID, err)
	}

	res.ListingComplete = sc.ListingComplete()
	log.Info().
		Int("pages", res.PagesProcessed).
		Int("skipped", res.PagesSkipped).
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("deleted", res.Deleted).
		Msg("Collection synced")
	return res, nil
}

// adoptAttempts bounds how often openContext re-reads a context that another
// writer changed between read and adoption.
const adoptAttempts = 3

// openContext resumes the collection's unfinished context or creates a new one.
func (e *Engine) openContext(ctx context.Context, runID string, rc source.RemoteCollection) (*syncctx.Context, bool, error) {
	for attempt := 1; ; attempt++ {
		sc, resumed, err := e.tryOpenContext(ctx, runID, rc)
		if errors.Is(err, syncctx.ErrConcurrentUpdate) && attempt < adoptAttempts {
			logging.Ctx(ctx).Debug().Err(err).Int("attempt", attempt).Msg("Sync context changed during adoption, retrying")
			continue
		}
		return sc, resumed, err
	}
}

func (e *Engine) tryOpenContext(ctx context.Context, runID string, rc source.RemoteCollection) (*syncctx.Context, bool, error) {
	now := e.now()
	existing, err := e.contexts.Active(ctx, rc.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load sync context for %s: %w", rc.ID, err)
	}

	if existing != nil {
		if existing.OwnerID != runID && existing.IsLive(now, e.cfg.LivenessTimeout) {
			return nil, false, fmt.Errorf("%w: %s (context %s)", ErrRunInProgress, rc.ID, existing.ID)
		}
		prev := existing.Revision()
		if err := existing.Adopt(runID, now); err != nil {
			return nil, false, err
		}
		existing.CollectionTitle = rc.Title
		if err := e.contexts.CompareAndSave(ctx, existing, prev); err != nil {
			return nil, false, fmt.Errorf("failed to adopt sync context %s: %w", existing.ID, err)
		}
		return existing, true, nil
	}

	sc := syncctx.New(rc.ID, rc.Title, runID, now)
	if err := e.contexts.Save(ctx, sc); err != nil {
		return nil, false, fmt.Errorf("failed to create sync context for %s: %w", rc.ID, err)
	}
	return sc, false, nil
}

// startHeartbeat touches the context periodically until the returned stop
// function is called. stop waits for the last touch and is idempotent.
func (e *Engine) startHeartbeat(ctx context.Context, id string) func() {
	beatCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(e.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-beatCtx.Done():
				return
			case <-ticker.C:
				if err := e.contexts.Touch(beatCtx, id, e.now()); err != nil && beatCtx.Err() == nil {
					logging.Ctx(ctx).Warn().Err(err).Str("context_id", id).Msg("Heartbeat failed")
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

// pageListing walks the listing from the context's next page.
func (e *Engine) pageListing(ctx context.Context, run *collectionRun) error {
	sc := run.sc
	storeCtx := context.WithoutCancel(ctx)
	failures := 0

	if sc.Exhausted {
		run.log.Info().Int("pages", sc.PagesProcessed).Msg("Listing already exhausted, resuming at deletion detection")
		return nil
	}

	for page := sc.NextPage; ; page++ {
		if ctx.Err() != nil {
			return e.cancelCollection(storeCtx, run)
		}

		p, err := e.source.ListItems(ctx, run.remote.ID, page)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return e.cancelCollection(storeCtx, run)
			case errors.Is(err, source.ErrPageCapReached):
				sc.MarkTruncated()
				run.log.Warn().Int("page", page).Msg("Page cap reached with more pages remaining")
				return e.saveProgress(storeCtx, run)
			case isRunLevel(err):
				return e.failCollection(storeCtx, run, err)
			}

			failures++
			run.res.PagesSkipped++
			metrics.RecordPage("skipped")
			metrics.RecordSyncError("page")
			run.log.Warn().Err(err).Int("page", page).Msg("Listing page failed, skipping")

			if beginErr := sc.Begin(e.now()); beginErr != nil {
				return e.failCollection(storeCtx, run, beginErr)
			}
			sc.SkipPage(page, err.Error(), e.now())
			run.res.Errors = append(run.res.Errors, fmt.Sprintf("collection %s page %d skipped: %v", run.remote.ID, page, err))
			if err := e.saveProgress(storeCtx, run); err != nil {
				return err
			}
			if failures >= e.cfg.MaxPageFailures {
				run.recordError(fmt.Sprintf("collection %s: stopped after %d consecutive page failures", run.remote.ID, failures))
				return e.saveProgress(storeCtx, run)
			}
			continue
		}
		failures = 0

		if p.Collection != nil && p.Collection.MediaCount > 0 {
			sc.DeclaredCount = p.Collection.MediaCount
		}

		if err := e.processPage(storeCtx, run, p); err != nil {
			return e.failCollection(storeCtx, run, err)
		}

		now := e.now()
		if err := sc.Begin(now); err != nil {
			return e.failCollection(storeCtx, run, err)
		}
		sc.Checkpoint(page, len(p.Entries), now)
		if !p.HasMore {
			sc.MarkExhausted()
		}
		run.res.PagesProcessed++
		metrics.RecordPage("committed")
		if err := e.saveProgress(storeCtx, run); err != nil {
			return err
		}

		if !p.HasMore {
			return nil
		}
	}
}

func (e *Engine) saveProgress(ctx context.Context, run *collectionRun) error {
	if err := e.contexts.Save(ctx, run.sc); err != nil {
		return fmt.Errorf("failed to checkpoint sync context %s: %w", run.sc.ID, err)
	}
	return nil
}

// cancelCollection leaves the context in-progress with its heartbeat released.
func (e *Engine) cancelCollection(ctx context.Context, run *collectionRun) error {
	run.stopBeat()
	run.sc.Release(e.now())
	if err := e.contexts.Save(ctx, run.sc); err != nil {
		run.log.Error().Err(err).Str("context_id", run.sc.ID).Msg("Failed to release cancelled sync context")
	}
	run.log.Info().Str("context_id", run.sc.ID).Int("next_page", run.sc.NextPage).Msg("Sync cancelled, context left resumable")
	return ErrRunCancelled
}

// failCollection marks the context failed and returns cause wrapped.
func (e *Engine) failCollection(ctx context.Context, run *collectionRun, cause error) error {
	run.stopBeat()
	if err := run.sc.Fail(cause, e.now()); err != nil {
		run.log.Warn().Err(err).Msg("Could not mark sync context failed")
	}
	if err := e.contexts.Save(ctx, run.sc); err != nil {
		run.log.Error().Err(err).Str("context_id", run.sc.ID).Msg("Failed to persist failed sync context")
	}
	return fmt.Errorf("collection %s: %w", run.remote.ID, cause)
}
