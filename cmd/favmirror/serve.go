// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/favmirror/internal/api"
	"github.com/tomtom215/favmirror/internal/config"
	"github.com/tomtom215/favmirror/internal/logging"
	"github.com/tomtom215/favmirror/internal/supervisor"
	"github.com/tomtom215/favmirror/internal/supervisor/services"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync scheduler and HTTP API until interrupted",
		Long: `Migrate the store, then supervise the sync scheduler and the HTTP API.

The scheduler runs the all-collections scope on schedule.spec and the task
queue worker executes submitted sync tasks. The API serves health, run
control, tasks, sync contexts and read-only mirror queries under /api/v1,
and Prometheus metrics on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.withApp(ctx, true, func(a *app) error {
				return serve(ctx, a)
			})
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("context_store", cfg.Sync.ContextStore).
		Bool("schedule", cfg.Schedule.Enabled).
		Str("spec", cfg.Schedule.Spec).
		Bool("tasks", cfg.Tasks.Enabled).
		Bool("http", cfg.Server.Enabled).
		Msg("Starting favmirror with supervisor tree")

	manager, err := a.newManager(a.newEngine(a.newSource()), true)
	if err != nil {
		return err
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	tree.AddSyncService(services.NewSyncService(manager))

	queue := a.newQueue(manager)
	if cfg.Tasks.Enabled {
		tree.AddSyncService(services.NewTaskQueueService(queue))
	}

	if cfg.Server.Enabled {
		srv := newHTTPServer(cfg.Server, api.NewHandler(a.store, manager, a.maint, queue, version))
		tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
		logging.Info().Str("addr", srv.Addr).Msg("HTTP API enabled")
	}

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	logging.Info().Msg("Shutdown signal received, stopping services")

	err = <-errCh
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}

func newHTTPServer(cfg config.ServerConfig, handler *api.Handler) *http.Server {
	mw := api.DefaultChiMiddlewareConfig()
	if len(cfg.CORSOrigins) > 0 {
		mw.CORSAllowedOrigins = cfg.CORSOrigins
	}
	mw.RateLimitRequests = cfg.RateLimitRequests
	mw.RateLimitWindow = cfg.RateLimitWindow
	mw.RateLimitDisabled = cfg.RateLimitDisabled

	router := api.NewRouter(handler, api.NewChiMiddleware(mw))
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       2 * cfg.Timeout,
	}
}
