package workqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/retry"
)

// failureHookTimeout bounds OnFailure calls, which run after the queue context may be gone.
const failureHookTimeout = 10 * time.Second

// Queue is a long-lived in-process task queue.
// The concurrency strategy decides how many LLM and data tasks run at once;
// failed tasks are retried per the retry config unless the error is permanent.
type Queue struct {
	mu        sync.Mutex
	tasks     []*TaskState
	cancelled bool

	strategy    ConcurrencyStrategy
	retryConfig *retry.Config

	// done is closed whenever no task is pending or running
	done chan struct{}
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	onUpdate []func([]TaskSnapshot)

	logger *zap.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithStrategy sets the concurrency strategy.
func WithStrategy(strategy ConcurrencyStrategy) QueueOption {
	return func(q *Queue) {
		if strategy != nil {
			q.strategy = strategy
		}
	}
}

// WithRetryConfig sets the retry configuration for failed tasks.
func WithRetryConfig(cfg *retry.Config) QueueOption {
	return func(q *Queue) {
		if cfg != nil {
			q.retryConfig = cfg
		}
	}
}

// New creates a work queue. Defaults: serialized strategy, 3 retries with a 60s linear step.
func New(logger *zap.Logger, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:       make([]*TaskState, 0),
		strategy:    NewSerializedStrategy(),
		retryConfig: retry.LinearConfig(3, 60*time.Second),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.Named("workqueue"),
	}
	close(q.done)

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// SetOnUpdate registers a callback invoked with all task snapshots on every change.
//
// The callback runs while the queue lock is held. It must not call Queue
// methods and must not block.
func (q *Queue) SetOnUpdate(callback func([]TaskSnapshot)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onUpdate = append(q.onUpdate, callback)
}

// Enqueue adds a task to the queue and attempts to start eligible tasks.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancelled {
		q.logger.Warn("queue shut down, ignoring enqueue",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()))
		return
	}

	q.resetDoneLocked()

	state := NewTaskState(task)
	q.tasks = append(q.tasks, state)

	ref := task.Resource()
	q.logger.Info("task enqueued",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()),
		zap.String("resource_type", ref.Type),
		zap.String("resource_id", ref.ID),
		zap.Bool("requires_llm", task.RequiresLLM()))

	q.notifyUpdateLocked()
	q.tryStartTasksLocked()
}

// tryStartTasksLocked starts every pending task the strategy allows.
// Must be called with lock held.
func (q *Queue) tryStartTasksLocked() {
	if q.cancelled {
		return
	}

	for _, ts := range q.tasks {
		if ts.GetStatus() != TaskStatusPending {
			continue
		}

		kind := kindOf(ts.Task)
		if !q.strategy.CanStart(kind) {
			continue
		}

		q.strategy.OnStart(kind)
		ts.SetStatus(TaskStatusRunning)
		q.notifyUpdateLocked()

		q.logger.Debug("starting task",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))

		q.wg.Add(1)
		go q.runTask(ts)
	}
}

// runTask executes a task, retrying transient errors with backoff.
func (q *Queue) runTask(ts *TaskState) {
	defer q.wg.Done()

	var lastErr error

	for attempt := 0; attempt <= q.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := q.retryConfig.Delay(attempt)
			q.logger.Info("retrying task after backoff",
				zap.String("task_id", ts.Task.ID()),
				zap.String("task_name", ts.Task.Name()),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", q.retryConfig.MaxRetries),
				zap.Duration("backoff", delay))

			timer := time.NewTimer(delay)
			select {
			case <-q.ctx.Done():
				timer.Stop()
				q.finish(ts, q.ctx.Err())
				return
			case <-timer.C:
			}
			q.setStatus(ts, TaskStatusRunning)
		}

		err := ts.Task.Execute(q.ctx, &taskRuntime{queue: q, state: ts, attempt: attempt + 1})
		if err == nil {
			q.finish(ts, nil)
			return
		}
		lastErr = err

		if errors.Is(err, context.Canceled) {
			break
		}

		if isPermanent(err) {
			q.logger.Warn("permanent error, failing task",
				zap.String("task_id", ts.Task.ID()),
				zap.String("task_name", ts.Task.Name()),
				zap.Error(err))
			break
		}

		if attempt >= q.retryConfig.MaxRetries {
			q.logger.Error("task failed after max retries",
				zap.String("task_id", ts.Task.ID()),
				zap.String("task_name", ts.Task.Name()),
				zap.Int("retry_count", ts.GetRetryCount()),
				zap.Error(err))
			break
		}

		ts.IncrementRetryCount()
		ts.SetError(err)
		q.setStatus(ts, TaskStatusRetrying)

		q.logger.Warn("retryable error encountered",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	q.finish(ts, lastErr)
}

// isPermanent reports whether another attempt of a task cannot succeed.
// Errors without a classification are retried.
func isPermanent(err error) bool {
	return retry.IsPermanent(err) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, apperrors.ErrForbidden) ||
		errors.Is(err, apperrors.ErrAIDisabled) ||
		errors.Is(err, apperrors.ErrTokenLimitReached)
}

// finish records the terminal state, runs the failure hook and starts waiting tasks.
func (q *Queue) finish(ts *TaskState, err error) {
	if err != nil {
		if handler, ok := ts.Task.(FailureHandler); ok {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(q.ctx), failureHookTimeout)
			handler.OnFailure(ctx, err)
			cancel()
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.strategy.OnComplete(kindOf(ts.Task))

	switch {
	case err == nil:
		ts.SetError(nil)
		ts.SetStatus(TaskStatusCompleted)
		q.logger.Info("task completed",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()),
			zap.Int("retry_count", ts.GetRetryCount()))
	case errors.Is(err, context.Canceled):
		ts.SetStatus(TaskStatusCancelled)
		q.logger.Info("task cancelled",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))
	default:
		ts.SetError(err)
		ts.SetStatus(TaskStatusFailed)
		q.logger.Error("task failed",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()),
			zap.Int("retry_count", ts.GetRetryCount()),
			zap.Error(err))
	}

	q.notifyUpdateLocked()

	if q.allTasksDoneLocked() {
		q.closeDoneLocked()
		return
	}
	q.tryStartTasksLocked()
}

func (q *Queue) setStatus(ts *TaskState, status TaskStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ts.SetStatus(status)
	q.notifyUpdateLocked()
}

// allTasksDoneLocked returns true if all tasks are in a terminal state.
// Must be called with lock held.
func (q *Queue) allTasksDoneLocked() bool {
	for _, ts := range q.tasks {
		if !ts.GetStatus().IsTerminal() {
			return false
		}
	}
	return true
}

// closeDoneLocked closes the done channel once.
// Must be called with lock held.
func (q *Queue) closeDoneLocked() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

// resetDoneLocked opens a fresh done channel if the previous one was closed.
// Must be called with lock held.
func (q *Queue) resetDoneLocked() {
	select {
	case <-q.done:
		q.done = make(chan struct{})
	default:
	}
}

// notifyUpdateLocked calls the update callbacks with a snapshot of all tasks.
// Must be called with lock held.
func (q *Queue) notifyUpdateLocked() {
	if len(q.onUpdate) == 0 {
		return
	}

	snapshots := q.snapshotsLocked()
	for _, fn := range q.onUpdate {
		fn(snapshots)
	}
}

func (q *Queue) snapshotsLocked() []TaskSnapshot {
	snapshots := make([]TaskSnapshot, len(q.tasks))
	for i, ts := range q.tasks {
		snapshots[i] = ts.Snapshot()
	}
	return snapshots
}

// GetTasks returns a snapshot of all tasks.
func (q *Queue) GetTasks() []TaskSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotsLocked()
}

// FindByResource returns the newest task working on the given row.
func (q *Queue) FindByResource(resourceType, resourceID string) (TaskSnapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := len(q.tasks) - 1; i >= 0; i-- {
		ref := q.tasks[i].Task.Resource()
		if ref.Type == resourceType && ref.ID == resourceID {
			return q.tasks[i].Snapshot(), true
		}
	}
	return TaskSnapshot{}, false
}

// Prune drops terminal tasks that finished more than olderThan ago.
// Returns the number of tasks removed.
func (q *Queue) Prune(olderThan time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	kept := q.tasks[:0]
	removed := 0
	for _, ts := range q.tasks {
		if ts.finishedBefore(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ts)
	}
	clear(q.tasks[len(kept):])
	q.tasks = kept

	if removed > 0 {
		q.logger.Debug("pruned finished tasks", zap.Int("count", removed))
		q.notifyUpdateLocked()
	}
	return removed
}

// Wait blocks until no task is pending or running, or ctx is done.
// Returns the first task error if any task failed.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()

	select {
	case <-done:
		q.mu.Lock()
		defer q.mu.Unlock()
		for _, ts := range q.tasks {
			if ts.GetStatus() == TaskStatusFailed {
				return ts.GetError()
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks, cancels running ones and waits for their
// goroutines to exit or ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.cancelled {
		q.cancelled = true
		q.logger.Info("queue shutting down, signaling running tasks to stop")
		q.cancel()

		for _, ts := range q.tasks {
			if ts.GetStatus() == TaskStatusPending {
				ts.SetStatus(TaskStatusCancelled)
			}
		}
		q.notifyUpdateLocked()
		if q.allTasksDoneLocked() {
			q.closeDoneLocked()
		}
	}
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Progress returns counts of tasks by status.
func (q *Queue) Progress() Progress {
	q.mu.Lock()
	defer q.mu.Unlock()

	p := Progress{Total: len(q.tasks)}
	for _, ts := range q.tasks {
		switch ts.GetStatus() {
		case TaskStatusPending:
			p.Pending++
		case TaskStatusRunning, TaskStatusRetrying:
			p.Running++
		case TaskStatusCompleted:
			p.Completed++
		case TaskStatusFailed:
			p.Failed++
		case TaskStatusCancelled:
			p.Cancelled++
		}
	}
	return p
}

// Progress holds queue progress statistics.
type Progress struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Percentage returns the completion percentage (0-100).
func (p Progress) Percentage() int {
	if p.Total == 0 {
		return 100
	}
	done := p.Completed + p.Failed + p.Cancelled
	return (done * 100) / p.Total
}

// taskRuntime is the Runtime handed to one attempt of a task.
type taskRuntime struct {
	queue   *Queue
	state   *TaskState
	attempt int
}

func (r *taskRuntime) Enqueue(task Task) {
	r.queue.Enqueue(task)
}

func (r *taskRuntime) ReportProgress(percent int, message string) {
	r.queue.mu.Lock()
	defer r.queue.mu.Unlock()
	r.state.SetProgress(percent, message)
	r.queue.notifyUpdateLocked()
}

func (r *taskRuntime) Attempt() int {
	return r.attempt
}
