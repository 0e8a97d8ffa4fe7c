// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package sync

import (
	"context"
	"fmt"

	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/store"
)

// detectDeletions removes memberships of the collection that were not seen
// since the context started, and flags items no collection holds any more.
// Only call it after a complete listing pass.
//
// Each stale membership is handled in its own transaction, so an interrupted
// pass leaves every processed membership consistent with its item.
func (e *Engine) detectDeletions(ctx context.Context, run *collectionRun) error {
	cutoff := run.sc.StartedAt

	var stale []models.Membership
	err := e.store.WithNamedTx(ctx, "deletion", func(tx *store.Tx) error {
		var err error
		stale, err = tx.StaleMemberships(ctx, run.rowID, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to find stale memberships: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	run.log.Info().Int("stale", len(stale)).Msg("Memberships no longer listed")

	for _, m := range stale {
		var summary *models.DeletionSummary
		err := e.store.WithNamedTx(ctx, "deletion", func(tx *store.Tx) error {
			summary = nil
			now := e.now()
			if err := tx.RemoveMembership(ctx, m.ID, now); err != nil {
				return err
			}
			remaining, err := tx.CountActiveMemberships(ctx, m.ItemID)
			if err != nil || remaining > 0 {
				return err
			}
			changed, err := tx.MarkItemDeleted(ctx, m.ItemID, now)
			if err != nil || !changed {
				return err
			}

			it, err := tx.ItemByID(ctx, m.ItemID)
			if err != nil {
				return err
			}
			uploader, err := tx.UploaderName(ctx, it.UploaderID)
			if err != nil {
				return err
			}
			rec := &models.DeletionRecord{
				CollectionRemoteID: run.remote.ID,
				CollectionTitle:    run.remote.Title,
				ShortCode:          it.ShortCode,
				Title:              it.Title,
				UploaderName:       uploader,
				Reason:             models.ReasonRemovedFromCollection,
				DeletedAt:          now,
			}
			if _, err := tx.AppendDeletionLog(ctx, rec); err != nil {
				return err
			}
			summary = &models.DeletionSummary{
				CollectionID: run.remote.ID,
				ShortCode:    it.ShortCode,
				Title:        it.Title,
				Reason:       rec.Reason,
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to reconcile membership %d: %w", m.ID, err)
		}
		if summary != nil {
			run.recordDeletion(*summary)
			run.log.Info().Str("short_code", summary.ShortCode).Str("title", summary.Title).Msg("Item deleted remotely")
		}
	}

	return e.saveProgress(ctx, run)
}
