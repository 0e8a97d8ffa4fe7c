// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply pending schema migrations in order, each in its own transaction.

With database.backup_before_migrate the database file is copied first.
--status only reports applied and pending migrations and changes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withApp(ctx, !status, func(a *app) error {
				out := cmd.OutOrStdout()
				applied, err := a.store.MigrationHistory(ctx)
				if err != nil {
					return err
				}
				pending, err := a.store.PendingMigrations(ctx)
				if err != nil {
					return err
				}

				for _, m := range applied {
					fmt.Fprintf(out, "applied  v%-3d %-28s %s\n", m.Version, m.Name, m.AppliedAt.Local().Format(time.DateTime))
				}
				for _, m := range pending {
					fmt.Fprintf(out, "pending  v%-3d %-28s %s\n", m.Version, m.Name, m.Description)
				}
				if len(pending) == 0 {
					fmt.Fprintln(out, "schema is up to date")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "report migrations without applying them")
	return cmd
}
