// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/store"
	"github.com/tomtom215/favmirror/internal/syncctx"
)

// statusReport is the JSON form of the status command.
type statusReport struct {
	DatabasePath  string              `json:"database_path"`
	SchemaVersion int                 `json:"schema_version"`
	Counts        store.Counts        `json:"counts"`
	Collections   []models.Collection `json:"collections"`
	Contexts      []syncctx.View      `json:"recent_contexts"`
}

func newStatusCmd(c *cli) *cobra.Command {
	var (
		jsonOutput bool
		recent     int
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show schema version, mirror counts and recent sync contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app) error {
				ctx := cmd.Context()
				version, err := a.store.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				counts, err := a.store.Counts(ctx)
				if err != nil {
					return err
				}
				cols, err := a.store.ListCollections(ctx)
				if err != nil {
					return err
				}
				views, err := a.maint.List(ctx, syncctx.Filter{Limit: recent})
				if err != nil {
					return err
				}

				report := statusReport{
					DatabasePath:  a.store.Path(),
					SchemaVersion: version,
					Counts:        counts,
					Collections:   cols,
					Contexts:      views,
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), report)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Database: %s (schema v%d)\n", report.DatabasePath, report.SchemaVersion)
				fmt.Fprintf(w, "Items: %d (%d deleted, %d official) in %d collection(s), %d deletion log entries\n",
					counts.Items, counts.Deleted, counts.Official, counts.Collections, counts.Deletions)
				for _, col := range cols {
					synced := "never"
					if col.LastSynced != nil {
						synced = col.LastSynced.Local().Format(time.DateTime)
					}
					fmt.Fprintf(w, "  [%s] %s: %d declared, last synced %s\n", col.RemoteID, col.Title, col.MediaCount, synced)
				}
				fmt.Fprintln(w, "Recent sync contexts:")
				printContexts(w, views)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")
	cmd.Flags().IntVar(&recent, "recent", 5, "number of recent sync contexts to show")
	return cmd
}
