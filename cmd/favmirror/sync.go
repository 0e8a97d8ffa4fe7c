// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/favmirror/internal/models"
	favsync "github.com/tomtom215/favmirror/internal/sync"
	"github.com/tomtom215/favmirror/internal/validation"
)

func newSyncCmd(c *cli) *cobra.Command {
	var (
		collectionID string
		forceCovers  bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and exit",
		Long: `Run one sync pass over every collection, or over one with --collection.

SIGINT stops the run after the current page. The interrupted sync context is
resumed by the next run. The exit status is non-zero on run-level errors.`,
		Example: `  favmirror sync
  favmirror sync --collection 1052622027 --force-covers
  favmirror sync --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if collectionID != "" {
				if err := validation.GetValidator().Var(collectionID, "remoteid"); err != nil {
					return fmt.Errorf("--collection must be a numeric collection id")
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return c.withApp(ctx, true, func(a *app) error {
				manager, err := a.newManager(a.newEngine(a.newSource()), false)
				if err != nil {
					return err
				}
				scope := favsync.Scope{CollectionID: collectionID}
				summary, runErr := manager.TriggerSync(ctx, scope, favsync.Options{ForceCovers: forceCovers})

				out := cmd.OutOrStdout()
				if summary != nil {
					if jsonOutput {
						if err := writeJSON(out, summary); err != nil {
							return err
						}
					} else {
						printSummary(out, summary)
					}
				}
				if errors.Is(runErr, favsync.ErrRunCancelled) {
					return fmt.Errorf("sync interrupted, the next run resumes from the last checkpoint: %w", runErr)
				}
				return runErr
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&collectionID, "collection", "", "sync only this remote collection id")
	f.BoolVar(&forceCovers, "force-covers", false, "re-download covers that are already cached")
	f.BoolVar(&jsonOutput, "json", false, "print the run summary as JSON")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, s *models.RunSummary) {
	fmt.Fprintf(w, "Run %s (%s) in %s\n", s.RunID, s.Scope, s.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  collections: %d\n", s.CollectionsProcessed)
	fmt.Fprintf(w, "  added: %d  updated: %d  deleted: %d  covers: %d\n",
		s.Added, s.Updated, s.Deleted, s.CoversDownloaded)
	if s.Cancelled {
		fmt.Fprintln(w, "  cancelled: yes")
	}
	for _, r := range s.Collections {
		fmt.Fprintf(w, "  [%s] %s: +%d ~%d -%d", r.CollectionID, r.Title, r.Added, r.Updated, r.Deleted)
		if !r.ListingComplete {
			fmt.Fprint(w, " (listing incomplete, deletion skipped)")
		}
		fmt.Fprintln(w)
	}
	for _, msg := range s.Errors {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
}
