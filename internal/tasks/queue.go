// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/favmirror/internal/logging"
	"github.com/tomtom215/favmirror/internal/metrics"
	"github.com/tomtom215/favmirror/internal/models"
	"github.com/tomtom215/favmirror/internal/source"
	favsync "github.com/tomtom215/favmirror/internal/sync"
	"github.com/tomtom215/favmirror/internal/validation"
)

// Runner executes a sync run. *sync.Manager implements it.
type Runner interface {
	TriggerSync(ctx context.Context, scope favsync.Scope, opts favsync.Options) (*models.RunSummary, error)
}

// QueueConfig configures task execution.
type QueueConfig struct {
	// PollInterval is how often the worker checks for due tasks, and how long
	// a task waits after finding the sync manager busy.
	PollInterval time.Duration

	// MaxRetries is the number of automatic retries a new task gets.
	MaxRetries int

	// RetryDelay is the wait before an automatic retry.
	RetryDelay time.Duration

	// Retention prunes finished tasks older than this while Run is active.
	// Zero keeps them.
	Retention time.Duration
}

// pruneInterval is how often Run prunes finished tasks.
const pruneInterval = time.Hour

// DefaultQueueConfig returns the defaults used when a field is zero.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		PollInterval: 2 * time.Second,
		MaxRetries:   2,
		RetryDelay:   5 * time.Minute,
	}
}

// Queue submits, executes and manages sync tasks.
//
// Thread Safety:
//   - mu: serializes state changes made by Cancel, Retry and the worker's
//     claim of a task, and protects the current run fields
type Queue struct {
	store  Store
	runner Runner
	cfg    QueueConfig
	now    func() time.Time
	wake   chan struct{}

	mu              sync.Mutex
	currentID       string
	cancelCurrent   context.CancelFunc
	cancelRequested bool
}

// NewQueue creates a queue. runner may be nil for a queue that only manages
// tasks; Run then refuses to start.
func NewQueue(store Store, runner Runner, cfg QueueConfig) *Queue {
	def := DefaultQueueConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	return &Queue{
		store:  store,
		runner: runner,
		cfg:    cfg,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
}

// WithClock replaces the time source. Used by tests.
func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Submit validates req and queues a new pending task.
func (q *Queue) Submit(ctx context.Context, req Request) (*Task, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, verr
	}
	t := New(req, q.cfg.MaxRetries, q.now())
	if err := q.store.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	logging.Info().Str("task_id", t.ID).Str("scope", t.Scope().String()).Int("priority", t.Priority).Msg("Sync task submitted")
	q.notify()
	return t, nil
}

// Get returns a task by id.
func (q *Queue) Get(ctx context.Context, id string) (*Task, error) {
	return q.store.Get(ctx, id)
}

// List returns tasks matching filter, newest first.
func (q *Queue) List(ctx context.Context, filter Filter) ([]*Task, error) {
	return q.store.List(ctx, filter)
}

// Cancel cancels a pending task, or the running task of this process. A
// cancelled running task is marked cancelled by the worker once its run
// stops; the task returned is its state at the time of the request.
func (q *Queue) Cancel(ctx context.Context, id string) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if id == q.currentID {
		q.cancelRequested = true
		q.cancelCurrent()
		logging.Info().Str("task_id", id).Msg("Cancelling running sync task")
		return t, nil
	}

	if t.Status == StatusRunning {
		return nil, fmt.Errorf("%w: %s", ErrRunningElsewhere, id)
	}
	if err := t.Cancel(q.now()); err != nil {
		return nil, err
	}
	if err := q.store.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	metrics.RecordTask("cancelled")
	logging.Info().Str("task_id", id).Msg("Sync task cancelled")
	return t, nil
}

// Retry puts a failed or cancelled task back in the queue.
func (q *Queue) Retry(ctx context.Context, id string) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Retry(q.now()); err != nil {
		return nil, err
	}
	if err := q.store.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	logging.Info().Str("task_id", id).Int("retry_count", t.RetryCount).Msg("Sync task queued for retry")
	q.notify()
	return t, nil
}

// Prune deletes finished tasks older than retention.
func (q *Queue) Prune(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", retention)
	}
	return q.store.Prune(ctx, q.now().Add(-retention))
}

// Recover requeues tasks left running by a process that stopped mid-run.
// It must only be called while no worker of another process shares the
// store.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	running, err := q.store.List(ctx, Filter{Statuses: []Status{StatusRunning}})
	if err != nil {
		return 0, fmt.Errorf("list running tasks: %w", err)
	}
	for _, t := range running {
		if err := t.Requeue(nil, q.now()); err != nil {
			return 0, err
		}
		t.Error, t.ErrorCode = "interrupted before completion", CodeInterrupted
		if err := q.store.Save(ctx, t); err != nil {
			return 0, fmt.Errorf("save task: %w", err)
		}
		logging.Warn().Str("task_id", t.ID).Msg("Requeued sync task interrupted by shutdown")
	}
	return len(running), nil
}

// Run executes due tasks until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	if q.runner == nil {
		return fmt.Errorf("task queue has no sync runner")
	}
	if _, err := q.Recover(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()
	pruneTicker := time.NewTicker(pruneInterval)
	defer pruneTicker.Stop()

	logging.Info().Dur("poll_interval", q.cfg.PollInterval).Msg("Task queue started")
	q.prune(ctx)
	for {
		q.drain(ctx)
		select {
		case <-ctx.Done():
			logging.Info().Msg("Task queue stopped")
			return nil
		case <-q.wake:
		case <-ticker.C:
		case <-pruneTicker.C:
			q.prune(ctx)
		}
	}
}

func (q *Queue) prune(ctx context.Context) {
	if q.cfg.Retention <= 0 {
		return
	}
	n, err := q.Prune(ctx, q.cfg.Retention)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to prune finished tasks")
		return
	}
	if n > 0 {
		logging.Info().Int("pruned", n).Dur("retention", q.cfg.Retention).Msg("Pruned finished tasks")
	}
}

// drain runs due tasks until none is left or ctx is done.
func (q *Queue) drain(ctx context.Context) {
	for ctx.Err() == nil {
		t, err := q.RunNext(ctx)
		if err != nil {
			logging.Error().Err(err).Msg("Task queue step failed")
			return
		}
		// A requeued task waits for the next poll.
		if t == nil || t.Status == StatusPending {
			break
		}
	}
	if pending, err := q.store.List(ctx, Filter{Statuses: []Status{StatusPending}}); err == nil {
		metrics.TasksPending.Set(float64(len(pending)))
	}
}

// RunNext executes the next due task, if any, and returns it as settled.
// It returns nil when no task is due. Run errors are recorded on the task;
// the error return is for store failures.
func (q *Queue) RunNext(ctx context.Context) (*Task, error) {
	t, runCtx, err := q.claim(ctx)
	if err != nil || t == nil {
		return nil, err
	}
	log := logging.Ctx(ctx).With().Str("task_id", t.ID).Str("scope", t.Scope().String()).Logger()
	log.Info().Int("retry_count", t.RetryCount).Msg("Sync task started")

	summary, runErr := q.runner.TriggerSync(runCtx, t.Scope(), t.Options())

	q.mu.Lock()
	cancelled := q.cancelRequested
	q.cancelCurrent()
	q.currentID, q.cancelCurrent, q.cancelRequested = "", nil, false
	q.mu.Unlock()

	now := q.now()
	result := q.settle(t, summary, runErr, cancelled, now)
	metrics.RecordTask(result)

	ev := log.Info()
	if result == "failed" || result == "retried" {
		ev = log.Warn().Err(runErr)
	}
	ev.Str("result", result).Msg("Sync task finished")

	if err := q.store.Save(context.WithoutCancel(ctx), t); err != nil {
		return nil, fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return t, nil
}

// claim moves the next due task to running and registers its run context.
func (q *Queue) claim(ctx context.Context) (*Task, context.Context, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.store.NextPending(ctx, q.now())
	if err != nil {
		return nil, nil, fmt.Errorf("next pending task: %w", err)
	}
	if t == nil {
		return nil, nil, nil
	}
	if err := t.Start(q.now()); err != nil {
		return nil, nil, err
	}
	if err := q.store.Save(ctx, t); err != nil {
		return nil, nil, fmt.Errorf("save task %s: %w", t.ID, err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.currentID, q.cancelCurrent, q.cancelRequested = t.ID, cancel, false
	return t, runCtx, nil
}

// settle applies the run outcome to t and returns the metrics result label.
func (q *Queue) settle(t *Task, summary *models.RunSummary, runErr error, cancelled bool, now time.Time) string {
	switch {
	case runErr == nil:
		_ = t.Complete(summary, now) //nolint:errcheck // t is running
		return "completed"

	case cancelled:
		_ = t.Cancel(now) //nolint:errcheck // t is running
		t.Summary = summary
		return "cancelled"

	case errors.Is(runErr, favsync.ErrSyncBusy), errors.Is(runErr, favsync.ErrRunCancelled):
		// Busy manager or shutdown. An interrupted run resumes from its sync
		// contexts when the task runs again.
		at := now.Add(q.cfg.PollInterval)
		_ = t.Requeue(&at, now) //nolint:errcheck // t is running
		return "requeued"
	}

	code := ErrorCode(runErr)
	if code != CodeCollectionNotFound && t.RetryCount < t.MaxRetries {
		at := now.Add(q.cfg.RetryDelay)
		_ = t.Requeue(&at, now) //nolint:errcheck // t is running
		t.RetryCount++
		t.Summary = summary
		t.Error, t.ErrorCode = runErr.Error(), code
		return "retried"
	}
	_ = t.Fail(runErr, code, summary, now) //nolint:errcheck // t is running
	return "failed"
}

// ErrorCode classifies a run error for the task record.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, favsync.ErrCollectionNotFound):
		return CodeCollectionNotFound
	case errors.Is(err, source.ErrUnavailable):
		return CodeSourceUnavailable
	default:
		return CodeSyncError
	}
}
