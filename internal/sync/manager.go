// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/favmirror/internal/logging"
	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/syncctx"
)

// ErrSyncBusy is returned when a run is requested while another is active.
var ErrSyncBusy = errors.New("a sync run is already in progress")

// Runner executes sync runs. *Engine implements it.
type Runner interface {
	Run(ctx context.Context, scope Scope, opts Options) (*models.RunSummary, error)
}

// ManagerConfig configures scheduling.
type ManagerConfig struct {
	// ScheduleEnabled turns on periodic runs of the All scope.
	ScheduleEnabled bool

	// Spec is a standard cron expression or descriptor such as "@every 6h".
	Spec string

	RunOnStartup bool

	// ContextRetention prunes finished contexts older than this after each
	// run. Zero disables pruning.
	ContextRetention time.Duration
}

// Manager schedules sync runs and guarantees at most one runs at a time.
//
// Thread Safety:
//   - runMu: held for the duration of a run (TryLock gives ErrSyncBusy)
//   - mu: protects lifecycle and last-run state
type Manager struct {
	runner Runner
	maint  *syncctx.Maintenance
	cfg    ManagerConfig

	runMu sync.Mutex

	mu        sync.RWMutex
	started   bool
	stopped   bool
	baseCtx   context.Context
	cancel    context.CancelFunc
	cancelRun context.CancelFunc
	cron      *cron.Cron
	lastRun   *models.RunSummary
	lastErr   error
	lastSync  time.Time

	wg sync.WaitGroup
}

// NewManager creates a manager. maint may be nil to disable pruning.
func NewManager(runner Runner, maint *syncctx.Maintenance, cfg ManagerConfig) (*Manager, error) {
	if cfg.ScheduleEnabled {
		if _, err := cron.ParseStandard(cfg.Spec); err != nil {
			return nil, fmt.Errorf("invalid sync schedule %q: %w", cfg.Spec, err)
		}
	}
	return &Manager{runner: runner, maint: maint, cfg: cfg}, nil
}

// Start begins scheduled runs. Runs triggered after Stop are rejected.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("sync manager is already running")
	}
	if m.stopped {
		return fmt.Errorf("sync manager was stopped")
	}

	m.baseCtx, m.cancel = context.WithCancel(ctx)
	m.started = true

	if m.cfg.ScheduleEnabled {
		m.cron = cron.New()
		if _, err := m.cron.AddFunc(m.cfg.Spec, m.scheduledRun); err != nil {
			m.cancel()
			m.started = false
			return fmt.Errorf("failed to schedule sync: %w", err)
		}
		m.cron.Start()
		logging.Info().Str("schedule", m.cfg.Spec).Msg("Sync schedule started")
	}

	if m.cfg.RunOnStartup {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.scheduledRun()
		}()
	}
	return nil
}

func (m *Manager) scheduledRun() {
	m.mu.RLock()
	ctx := m.baseCtx
	m.mu.RUnlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	_, err := m.TriggerSync(ctx, All, Options{})
	switch {
	case errors.Is(err, ErrSyncBusy):
		logging.Info().Msg("Scheduled sync skipped, a run is already active")
	case err != nil && !errors.Is(err, ErrRunCancelled):
		logging.Warn().Err(err).Msg("Scheduled sync failed")
	}
}

// Stop ends scheduling, cancels an in-flight run cooperatively and waits for it.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	c := m.cron
	if m.cancel != nil {
		m.cancel()
	}
	if m.cancelRun != nil {
		m.cancelRun()
	}
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")
	return nil
}

// begin registers a run. It returns the run context or ErrSyncBusy.
func (m *Manager) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if !m.runMu.TryLock() {
		return nil, nil, ErrSyncBusy
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		m.runMu.Unlock()
		return nil, nil, fmt.Errorf("sync manager stopped: %w", ErrRunCancelled)
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancelRun = cancel
	m.wg.Add(1)
	return runCtx, cancel, nil
}

func (m *Manager) finish(cancel context.CancelFunc) {
	cancel()
	m.mu.Lock()
	m.cancelRun = nil
	m.mu.Unlock()
	m.runMu.Unlock()
	m.wg.Done()
}

// TriggerSync runs synchronously. It returns ErrSyncBusy when a run is active.
func (m *Manager) TriggerSync(ctx context.Context, scope Scope, opts Options) (*models.RunSummary, error) {
	runCtx, cancel, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer m.finish(cancel)
	return m.execute(runCtx, scope, opts)
}

// TriggerAsync starts a run in the background and returns at once. It
// returns ErrSyncBusy when a run is active. The result is available from
// LastRun when the run finishes.
func (m *Manager) TriggerAsync(scope Scope, opts Options) error {
	m.mu.RLock()
	base := m.baseCtx
	m.mu.RUnlock()
	if base == nil {
		base = context.Background()
	}

	runCtx, cancel, err := m.begin(base)
	if err != nil {
		return err
	}
	go func() {
		defer m.finish(cancel)
		_, err := m.execute(runCtx, scope, opts)
		if err != nil && !errors.Is(err, ErrRunCancelled) {
			logging.Warn().Err(err).Str("scope", scope.String()).Msg("Background sync failed")
		}
	}()
	return nil
}

func (m *Manager) execute(ctx context.Context, scope Scope, opts Options) (*models.RunSummary, error) {
	summary, err := m.runner.Run(ctx, scope, opts)

	m.mu.Lock()
	if summary != nil {
		m.lastRun = summary
	}
	m.lastErr = err
	if err == nil && summary != nil {
		m.lastSync = summary.FinishedAt
	}
	m.mu.Unlock()

	m.prune(context.WithoutCancel(ctx))
	return summary, err
}

func (m *Manager) prune(ctx context.Context) {
	if m.maint == nil || m.cfg.ContextRetention <= 0 {
		return
	}
	n, err := m.maint.Prune(ctx, m.cfg.ContextRetention)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to prune sync contexts")
		return
	}
	if n > 0 {
		logging.Info().Int("pruned", n).Dur("retention", m.cfg.ContextRetention).Msg("Pruned finished sync contexts")
	}
}

// LastRun returns the most recent run summary and its error, or nil before
// the first run.
func (m *Manager) LastRun() (*models.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRun, m.lastErr
}

// LastSyncTime returns when the last successful run finished.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync
}

// IsRunning reports whether a run is active.
func (m *Manager) IsRunning() bool {
	if m.runMu.TryLock() {
		m.runMu.Unlock()
		return false
	}
	return true
}
