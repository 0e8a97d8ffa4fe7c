// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/favmirror/internal/assets"
	"github.com/tomtom215/favmirror/internal/metrics"
	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/source"
	"github.com/tomtom215/favmirror/internal/store"
)

// entryState is how a listing entry is applied to the store.
type entryState int

const (
	// entryNormal carries real metadata.
	entryNormal entryState = iota

	// entryGone was confirmed removed by the remote.
	entryGone

	// entryUnconfirmed is an invalidated placeholder whose detail lookup failed.
	entryUnconfirmed
)

type pageEntry struct {
	source.Entry
	state entryState
}

type coverJob struct {
	itemID    int64
	shortCode string
	url       string
	forced    bool
	oldPath   string
}

// processPage applies one listing page. ctx must not be cancellable: once a
// page is fetched it is always finished.
func (e *Engine) processPage(ctx context.Context, run *collectionRun, p *source.Page) error {
	entries, err := e.confirmEntries(ctx, run, p.Entries)
	if err != nil {
		return fmt.Errorf("page %d: %w", p.Number, err)
	}

	var jobs []coverJob
	var pageAdded, pageUpdated int
	var deletions []models.DeletionSummary
	err = e.store.WithNamedTx(ctx, "page", func(tx *store.Tx) error {
		jobs, pageAdded, pageUpdated, deletions = nil, 0, 0, nil
		now := e.now()
		for i := range entries {
			pe := &entries[i]
			if pe.Item.ShortCode == "" {
				continue
			}
			r, err := e.applyEntry(ctx, tx, run, pe, now)
			if err != nil {
				return err
			}
			if r.added {
				pageAdded++
			} else if r.updated {
				pageUpdated++
			}
			if r.deletion != nil {
				deletions = append(deletions, *r.deletion)
			}
			if r.cover != nil {
				jobs = append(jobs, *r.cover)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("page %d: %w", p.Number, err)
	}

	for _, pe := range entries {
		if pe.Item.ShortCode == "" {
			run.recordError(fmt.Sprintf("collection %s page %d: entry %s has no short code", run.remote.ID, p.Number, pe.Item.RemoteID))
			metrics.RecordSyncError("item")
		}
	}

	run.res.Added += pageAdded
	run.res.Updated += pageUpdated
	run.sc.Added += pageAdded
	run.sc.Updated += pageUpdated
	for _, d := range deletions {
		run.recordDeletion(d)
		run.log.Info().Str("short_code", d.ShortCode).Str("reason", d.Reason).Msg("Item reported removed by remote")
	}

	return e.downloadCovers(ctx, run, jobs)
}

// confirmEntries looks up every invalidated listing entry through the detail
// endpoint before the page transaction starts. An unavailable source aborts
// the page with a run-level error.
func (e *Engine) confirmEntries(ctx context.Context, run *collectionRun, in []source.Entry) ([]pageEntry, error) {
	out := make([]pageEntry, len(in))
	for i := range in {
		out[i] = pageEntry{Entry: in[i]}
		if !in[i].Unavailable || in[i].Item.ShortCode == "" {
			continue
		}

		code := in[i].Item.ShortCode
		detail, err := e.source.GetItemDetail(ctx, code)
		switch {
		case err == nil:
			confirmed := *detail
			if confirmed.FavTime == nil {
				confirmed.FavTime = in[i].FavTime
			}
			confirmed.Unavailable = false
			if confirmed.Item.ShortCode == "" {
				confirmed.Item.ShortCode = code
			}
			out[i] = pageEntry{Entry: confirmed}
		case errors.Is(err, source.ErrItemGone):
			out[i].state = entryGone
		case isRunLevel(err):
			return nil, fmt.Errorf("item %s: detail lookup: %w", code, err)
		default:
			out[i].state = entryUnconfirmed
			run.recordError(fmt.Sprintf("item %s: detail lookup failed: %v", code, err))
			metrics.RecordSyncError("item")
			run.log.Warn().Err(err).Str("short_code", code).Msg("Could not confirm invalidated item")
		}
	}
	return out, nil
}

type entryResult struct {
	added    bool
	updated  bool
	deletion *models.DeletionSummary
	cover    *coverJob
}

// applyEntry upserts one entry's uploader, item, stats and membership.
func (e *Engine) applyEntry(ctx context.Context, tx *store.Tx, run *collectionRun, pe *pageEntry, now time.Time) (entryResult, error) {
	var r entryResult
	it := pe.Item

	existing, err := tx.ItemByShortCode(ctx, it.ShortCode)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return r, err
	}

	if pe.state == entryNormal && pe.Uploader.RemoteID != "" {
		if _, err := tx.UpsertUploader(ctx, &pe.Uploader, now); err != nil {
			return r, err
		}
	}

	var itemID int64
	changed := false
	switch {
	case existing == nil:
		itemID, err = tx.InsertItem(ctx, &it, now)
		if err != nil {
			return r, err
		}
	case pe.state == entryNormal:
		itemID = existing.ID
		if !existing.SameContent(&it) {
			if err := tx.UpdateItem(ctx, itemID, &it, now); err != nil {
				return r, err
			}
			changed = true
		}
	default:
		// A placeholder never overwrites stored metadata.
		itemID = existing.ID
	}

	if pe.state == entryNormal {
		statsChanged, err := e.recordStats(ctx, tx, itemID, pe.Stats, now)
		if err != nil {
			return r, err
		}
		changed = changed || (statsChanged && existing != nil)
	}

	created, err := tx.TouchMembership(ctx, run.rowID, itemID, pe.FavTime, now)
	if err != nil {
		return r, err
	}
	r.added = created
	r.updated = !created && changed

	if pe.state == entryGone {
		d, err := e.markGone(ctx, tx, run, itemID, existing, &it, now)
		if err != nil {
			return r, err
		}
		r.deletion = d
		return r, nil
	}

	if pe.state == entryNormal {
		r.cover = e.coverFor(run, itemID, existing, &it)
	}
	return r, nil
}

// recordStats appends a snapshot when the counters differ from the latest one.
func (e *Engine) recordStats(ctx context.Context, tx *store.Tx, itemID int64, st models.ItemStats, now time.Time) (bool, error) {
	latest, err := tx.LatestStats(ctx, itemID)
	if err != nil {
		return false, err
	}
	if latest != nil && latest.SameCounters(&st) {
		return false, nil
	}
	st.ItemID = itemID
	st.RecordedAt = now
	if err := tx.AppendStats(ctx, &st); err != nil {
		return false, err
	}
	return true, nil
}

// markGone flags an item the remote reported removed and logs it once.
func (e *Engine) markGone(ctx context.Context, tx *store.Tx, run *collectionRun, itemID int64, existing, listed *models.Item, now time.Time) (*models.DeletionSummary, error) {
	changed, err := tx.MarkItemDeleted(ctx, itemID, now)
	if err != nil || !changed {
		return nil, err
	}

	ref := listed
	if existing != nil {
		ref = existing
	}
	uploader, err := tx.UploaderName(ctx, ref.UploaderID)
	if err != nil {
		return nil, err
	}

	rec := &models.DeletionRecord{
		CollectionRemoteID: run.remote.ID,
		CollectionTitle:    run.remote.Title,
		ShortCode:          ref.ShortCode,
		Title:              ref.Title,
		UploaderName:       uploader,
		Reason:             models.ReasonReportedGone,
		DeletedAt:          now,
	}
	if _, err := tx.AppendDeletionLog(ctx, rec); err != nil {
		return nil, err
	}
	return &models.DeletionSummary{
		CollectionID: run.remote.ID,
		ShortCode:    rec.ShortCode,
		Title:        rec.Title,
		Reason:       rec.Reason,
	}, nil
}

// coverFor decides whether an item's cover needs fetching.
func (e *Engine) coverFor(run *collectionRun, itemID int64, existing, it *models.Item) *coverJob {
	if !e.cfg.CoversEnabled || it.CoverURL == "" {
		return nil
	}
	job := &coverJob{itemID: itemID, shortCode: it.ShortCode, url: it.CoverURL, forced: run.opts.ForceCovers}
	if existing == nil {
		return job
	}
	job.oldPath = existing.LocalCoverPath
	if existing.CoverURL != it.CoverURL {
		job.forced = true
		return job
	}
	if job.forced || existing.LocalCoverPath == "" || !assets.Exists(existing.LocalCoverPath) {
		return job
	}
	return nil
}

// downloadCovers fetches covers after the page commit and records their paths.
// Failures are item-level.
func (e *Engine) downloadCovers(ctx context.Context, run *collectionRun, jobs []coverJob) error {
	if len(jobs) == 0 {
		return nil
	}

	type update struct {
		itemID int64
		path   string
	}
	var updates []update
	for _, j := range jobs {
		path, downloaded, err := e.covers.Ensure(ctx, j.shortCode, j.url, j.forced)
		if err != nil {
			run.recordError(fmt.Sprintf("item %s: cover: %v", j.shortCode, err))
			metrics.RecordSyncError("cover")
			run.log.Warn().Err(err).Str("short_code", j.shortCode).Msg("Cover download failed")
			continue
		}
		if downloaded {
			run.res.CoversDownloaded++
			run.sc.CoversDownloaded++
		}
		if path != j.oldPath {
			updates = append(updates, update{itemID: j.itemID, path: path})
		}
	}
	if len(updates) == 0 {
		return nil
	}

	return e.store.WithNamedTx(ctx, "covers", func(tx *store.Tx) error {
		now := e.now()
		for _, u := range updates {
			if err := tx.SetCoverPath(ctx, u.itemID, u.path, now); err != nil {
				return err
			}
		}
		return nil
	})
}
