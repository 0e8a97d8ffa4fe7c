// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/favmirror/internal/syncctx"
)

func newContextsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "contexts",
		Aliases: []string{"ctx"},
		Short:   "Inspect and maintain sync contexts",
		Long: `A sync context is the persisted progress of one collection within a run.

In-progress contexts whose run stopped heartbeating are reported as
interrupted. The next run resumes them from their checkpoint, unless they are
cleaned first.`,
	}
	cmd.AddCommand(
		newContextsListCmd(c),
		newContextsCleanCmd(c),
		newContextsResumeCmd(c),
		newContextsPruneCmd(c),
	)
	return cmd
}

func newContextsListCmd(c *cli) *cobra.Command {
	var (
		status       string
		collectionID string
		limit        int
		jsonOutput   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sync contexts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := syncctx.Filter{CollectionID: collectionID, Limit: limit}
			if status != "" {
				s := syncctx.Status(status)
				if !validStatus(s) {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Statuses = []syncctx.Status{s}
			}
			return c.withApp(cmd.Context(), true, func(a *app) error {
				views, err := a.maint.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), views)
				}
				printContexts(cmd.OutOrStdout(), views)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "", "filter: pending, in-progress, interrupted, completed, failed, cleaned")
	f.StringVar(&collectionID, "collection", "", "filter by remote collection id")
	f.IntVar(&limit, "limit", 20, "maximum contexts to show (0 for all)")
	f.BoolVar(&jsonOutput, "json", false, "print as JSON")
	return cmd
}

func newContextsCleanCmd(c *cli) *cobra.Command {
	var (
		stale        bool
		collectionID string
	)
	cmd := &cobra.Command{
		Use:   "clean [context-id]",
		Short: "Abandon an interrupted or failed context",
		Long: `Mark a context cleaned so later runs start that collection from page 1.

With --stale every interrupted and failed context is cleaned, optionally
limited to one collection. Contexts owned by a live run are never cleaned.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if stale {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app) error {
				out := cmd.OutOrStdout()
				if stale {
					cleaned, err := a.maint.CleanStale(cmd.Context(), collectionID)
					for _, sc := range cleaned {
						fmt.Fprintf(out, "cleaned %s (collection %s)\n", sc.ID, sc.CollectionID)
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%d context(s) cleaned\n", len(cleaned))
					return nil
				}
				sc, err := a.maint.Clean(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "cleaned %s (collection %s)\n", sc.ID, sc.CollectionID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&stale, "stale", false, "clean every interrupted and failed context")
	cmd.Flags().StringVar(&collectionID, "collection", "", "with --stale, only this remote collection id")
	return cmd
}

func newContextsResumeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <context-id>",
		Short: "Reopen a failed context so the next run continues it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app) error {
				sc, err := a.maint.Reopen(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reopened %s (collection %s), next run resumes at page %d\n",
					sc.ID, sc.CollectionID, sc.NextPage)
				return nil
			})
		},
	}
}

func newContextsPruneCmd(c *cli) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete completed and cleaned contexts older than the retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("older-than") {
				retention = c.cfg.Sync.ContextRetention
			}
			if retention <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return c.withApp(cmd.Context(), true, func(a *app) error {
				n, err := a.maint.Prune(cmd.Context(), retention)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d context(s) pruned\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&retention, "older-than", 0, "remove contexts last updated before this age (default: sync.context_retention)")
	return cmd
}

func validStatus(s syncctx.Status) bool {
	switch s {
	case syncctx.StatusPending, syncctx.StatusInProgress, syncctx.StatusInterrupted,
		syncctx.StatusCompleted, syncctx.StatusFailed, syncctx.StatusCleaned:
		return true
	}
	return false
}

func printContexts(w io.Writer, views []syncctx.View) {
	if len(views) == 0 {
		fmt.Fprintln(w, "no sync contexts")
		return
	}
	for _, v := range views {
		fmt.Fprintf(w, "%s  %-11s  collection %s %q  pages %d (next %d)  +%d ~%d -%d  updated %s\n",
			v.ID, v.EffectiveStatus, v.CollectionID, v.CollectionTitle,
			v.PagesProcessed, v.NextPage, v.Added, v.Updated, v.Deleted,
			v.UpdatedAt.Local().Format(time.DateTime))
		if len(v.SkippedPages) > 0 || v.Truncated {
			fmt.Fprintf(w, "    listing incomplete: skipped pages %v, truncated %t\n", v.SkippedPages, v.Truncated)
		}
		if v.LastError != "" {
			fmt.Fprintf(w, "    last error: %s\n", v.LastError)
		}
	}
}
