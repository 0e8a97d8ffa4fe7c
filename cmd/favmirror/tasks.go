// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/favmirror/internal/tasks"
)

func newTasksCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Queue and manage sync tasks",
		Long: `A task is a persisted request for a sync run. serve executes pending tasks
one at a time, highest priority first. Failed tasks are retried automatically
up to tasks.max_retries times, then wait for a manual retry.`,
	}
	cmd.AddCommand(
		newTasksListCmd(c),
		newTasksSubmitCmd(c),
		newTasksRunCmd(c),
		newTasksCancelCmd(c),
		newTasksRetryCmd(c),
		newTasksPruneCmd(c),
	)
	return cmd
}

func newTasksListCmd(c *cli) *cobra.Command {
	var (
		status     string
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := tasks.Filter{Limit: limit}
			if status != "" {
				s, err := tasks.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Statuses = []tasks.Status{s}
			}
			return c.withApp(cmd.Context(), true, func(a *app) error {
				list, err := a.newQueue(nil).List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					if list == nil {
						list = []*tasks.Task{}
					}
					return writeJSON(cmd.OutOrStdout(), list)
				}
				printTasks(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "", "filter: pending, running, completed, failed, cancelled")
	f.IntVar(&limit, "limit", 20, "maximum tasks to show (0 for all)")
	f.BoolVar(&jsonOutput, "json", false, "print as JSON")
	return cmd
}

func newTasksSubmitCmd(c *cli) *cobra.Command {
	var req tasks.Request
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a sync task",
		Example: `  favmirror tasks submit
  favmirror tasks submit --collection 1052622027 --priority 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app) error {
				t, err := a.newQueue(nil).Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s (%s, priority %d)\n", t.ID, t.Title, t.Priority)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.CollectionID, "collection", "", "sync only this remote collection id")
	f.BoolVar(&req.ForceCovers, "force-covers", false, "re-download covers that are already cached")
	f.IntVar(&req.Priority, "priority", 0, "queue priority from -100 to 100, higher runs first")
	return cmd
}

func newTasksRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute due tasks once and exit",
		Long: `Run every due pending task in queue order, then exit. Tasks requeued for a
delayed retry are left for a later run. SIGINT stops the current task after
its current page and puts it back in the queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return c.withApp(ctx, true, func(a *app) error {
				manager, err := a.newManager(a.newEngine(a.newSource()), false)
				if err != nil {
					return err
				}
				queue := a.newQueue(manager)
				if _, err := queue.Recover(ctx); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				ran := 0
				for ctx.Err() == nil {
					t, err := queue.RunNext(ctx)
					if err != nil {
						return err
					}
					if t == nil {
						break
					}
					ran++
					printTask(out, t)
					if t.Status == tasks.StatusPending {
						break
					}
				}
				fmt.Fprintf(out, "%d task(s) run\n", ran)
				return ctx.Err()
			})
		},
	}
}

func newTasksCancelCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a pending task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app) error {
				t, err := a.newQueue(nil).Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", t.ID)
				return nil
			})
		},
	}
}

func newTasksRetryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Queue a failed or cancelled task again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), true, func(a *app) error {
				t, err := a.newQueue(nil).Retry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %s (retry %d)\n", t.ID, t.RetryCount)
				return nil
			})
		},
	}
}

func newTasksPruneCmd(c *cli) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished tasks older than the retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("older-than") {
				retention = c.cfg.Tasks.Retention
			}
			if retention <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return c.withApp(cmd.Context(), true, func(a *app) error {
				n, err := a.newQueue(nil).Prune(cmd.Context(), retention)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d task(s) pruned\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&retention, "older-than", 0, "remove tasks last updated before this age (default: tasks.retention)")
	return cmd
}

func printTasks(w io.Writer, list []*tasks.Task) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no tasks")
		return
	}
	for _, t := range list {
		printTask(w, t)
	}
}

func printTask(w io.Writer, t *tasks.Task) {
	fmt.Fprintf(w, "%s  %-9s  %s  priority %d  retries %d/%d  updated %s\n",
		t.ID, t.Status, t.Title, t.Priority, t.RetryCount, t.MaxRetries,
		t.UpdatedAt.Local().Format(time.DateTime))
	if t.Summary != nil {
		fmt.Fprintf(w, "    +%d ~%d -%d in %d collection(s)\n",
			t.Summary.Added, t.Summary.Updated, t.Summary.Deleted, t.Summary.CollectionsProcessed)
	}
	if t.Error != "" {
		fmt.Fprintf(w, "    %s: %s\n", t.ErrorCode, t.Error)
	}
	if t.Status == tasks.StatusPending && t.NotBefore != nil {
		fmt.Fprintf(w, "    next attempt after %s\n", t.NotBefore.Local().Format(time.DateTime))
	}
}
