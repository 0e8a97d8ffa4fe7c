// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/favmirror/internal/config"
	"github.com/tomtom215/favmirror/internal/logging"
)

// cli holds state shared by all commands of one invocation.
type cli struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "favmirror",
		Short: "Incremental mirror of remote favorites folders",
		Long: `favmirror keeps a local SQLite mirror of a remote account's favorites folders.

Runs are incremental and resumable: progress is checkpointed per listing page,
so an interrupted run continues where it stopped. Items are only recorded as
deleted once they are absent from every folder that held them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Close()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.configPath, "config", "", "config file (default: CONFIG_PATH, config.yaml, /etc/favmirror/config.yaml)")
	f.StringVar(&c.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(c),
		newSyncCmd(c),
		newStatusCmd(c),
		newContextsCmd(c),
		newTasksCmd(c),
		newMigrateCmd(c),
	)
	return root
}

// load reads configuration and initializes logging.
func (c *cli) load() error {
	cfg, err := config.LoadFrom(c.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	c.cfg = cfg

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		File: logging.FileConfig{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
	})
	return nil
}
