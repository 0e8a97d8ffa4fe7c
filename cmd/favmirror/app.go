// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/favmirror/internal/assets"
	"github.com/tomtom215/favmirror/internal/config"
	"github.com/tomtom215/favmirror/internal/logging"
	"github.com/tomtom215/favmirror/internal/source"
	"github.com/tomtom215/favmirror/internal/store"
	favsync "github.com/tomtom215/favmirror/internal/sync"
	"github.com/tomtom215/favmirror/internal/syncctx"
	"github.com/tomtom215/favmirror/internal/tasks"
)

// app is the opened mirror store and its sync context backend.
type app struct {
	cfg      *config.Config
	store    *store.Store
	contexts syncctx.Store
	maint    *syncctx.Maintenance

	contextCloser io.Closer
}

// openApp opens the store. With migrate set, pending migrations are applied
// before anything else touches the database.
func openApp(ctx context.Context, cfg *config.Config, migrate bool) (*app, error) {
	st, err := store.Open(ctx, store.Config{
		Path:                cfg.Database.Path,
		BackupBeforeMigrate: cfg.Database.BackupBeforeMigrate,
		MaxOpenConns:        cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if migrate {
		applied, err := st.Migrate(ctx)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("migrate store: %w", err)
		}
		if applied > 0 {
			logging.Info().Int("applied", applied).Str("path", st.Path()).Msg("Applied store migrations")
		}
	}

	contexts, closer, err := syncctx.NewStore(syncctx.StoreType(cfg.Sync.ContextStore), cfg.Sync.BadgerPath, st.SyncContexts())
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &app{
		cfg:           cfg,
		store:         st,
		contexts:      contexts,
		maint:         syncctx.NewMaintenance(contexts, cfg.Sync.LivenessTimeout),
		contextCloser: closer,
	}, nil
}

// Close releases the context backend, then the store.
func (a *app) Close() error {
	var errs []error
	if a.contextCloser != nil {
		if err := a.contextCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context store: %w", err))
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// newSource builds the remote client behind a circuit breaker.
func (a *app) newSource() source.Source {
	client := source.NewClient(a.cfg.Source).WithMaxAssetBytes(a.cfg.Assets.MaxBytes)
	return source.NewCircuitBreakerSource(client, source.DefaultBreakerSettings())
}

// newEngine wires an engine against src.
func (a *app) newEngine(src source.Source) *favsync.Engine {
	var covers *assets.Cache
	if a.cfg.Assets.Enabled {
		covers = assets.New(a.cfg.Assets.Dir, src, a.cfg.Assets.Timeout, a.cfg.Assets.MaxBytes)
	}
	return favsync.New(favsync.Deps{
		Store:    a.store,
		Contexts: a.contexts,
		Source:   src,
		Covers:   covers,
	}, favsync.EngineConfig{
		CoversEnabled:     a.cfg.Assets.Enabled,
		LivenessTimeout:   a.cfg.Sync.LivenessTimeout,
		HeartbeatInterval: a.cfg.Sync.HeartbeatInterval,
	})
}

// newManager wires the scheduler. schedule is false for one-shot runs.
func (a *app) newManager(runner favsync.Runner, schedule bool) (*favsync.Manager, error) {
	return favsync.NewManager(runner, a.maint, favsync.ManagerConfig{
		ScheduleEnabled:  schedule && a.cfg.Schedule.Enabled,
		Spec:             a.cfg.Schedule.Spec,
		RunOnStartup:     schedule && a.cfg.Schedule.RunOnStartup,
		ContextRetention: a.cfg.Sync.ContextRetention,
	})
}

// newQueue opens the task queue on the mirror database. runner is nil when
// the queue is only managed, not executed.
func (a *app) newQueue(runner tasks.Runner) *tasks.Queue {
	return tasks.NewQueue(tasks.NewSQLStore(a.store.DB()), runner, tasks.QueueConfig{
		PollInterval: a.cfg.Tasks.PollInterval,
		MaxRetries:   a.cfg.Tasks.MaxRetries,
		RetryDelay:   a.cfg.Tasks.RetryDelay,
		Retention:    a.cfg.Tasks.Retention,
	})
}

// withApp opens the app for the duration of fn.
func (c *cli) withApp(ctx context.Context, migrate bool, fn func(*app) error) error {
	a, err := openApp(ctx, c.cfg, migrate)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	return fn(a)
}
