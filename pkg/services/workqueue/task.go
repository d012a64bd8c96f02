package workqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusRetrying  TaskStatus = "retrying"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task is the interface that all work queue tasks must implement.
type Task interface {
	// ID returns a unique identifier for this task.
	ID() string

	// Name returns a human-readable name for display.
	Name() string

	// RequiresLLM returns true if this task makes LLM API calls.
	// LLM tasks are throttled by the queue strategy.
	RequiresLLM() bool

	// Resource identifies the domain row the task works on.
	Resource() ResourceRef

	// Execute runs the task. A returned error schedules another attempt unless
	// it is permanent (see retry.Permanent) or a not-found, invalid-input,
	// forbidden, AI-disabled or token-limit error.
	Execute(ctx context.Context, rt Runtime) error
}

// FailureHandler is implemented by tasks that persist their terminal failure
// (e.g. status=failed plus error_message on the domain row).
type FailureHandler interface {
	OnFailure(ctx context.Context, err error)
}

// TaskEnqueuer allows tasks to enqueue follow-up tasks.
type TaskEnqueuer interface {
	Enqueue(task Task)
}

// Runtime is handed to a running task.
type Runtime interface {
	TaskEnqueuer
	// ReportProgress records percent (0-100) and a short message.
	ReportProgress(percent int, message string)
	// Attempt returns the 1-based attempt number.
	Attempt() int
}

// ResourceRef points at the row a task updates, and the user who asked for it.
type ResourceRef struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	OwnerID string `json:"owner_id,omitempty"`
}

// TaskState holds the runtime state of a task.
type TaskState struct {
	Task        Task
	Status      TaskStatus
	Progress    int
	Message     string
	RetryCount  int
	EnqueuedAt  time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       error

	mu sync.RWMutex
}

// NewTaskState creates a new TaskState wrapping a task.
func NewTaskState(task Task) *TaskState {
	return &TaskState{
		Task:       task,
		Status:     TaskStatusPending,
		EnqueuedAt: time.Now(),
	}
}

// GetStatus returns the current status (thread-safe).
func (ts *TaskState) GetStatus() TaskStatus {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.Status
}

// SetStatus updates the status and timestamps (thread-safe).
func (ts *TaskState) SetStatus(status TaskStatus) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.Status = status
	now := time.Now()

	switch {
	case status == TaskStatusRunning && ts.StartedAt == nil:
		ts.StartedAt = &now
	case status == TaskStatusCompleted:
		ts.Progress = 100
		ts.CompletedAt = &now
	case status.IsTerminal():
		ts.CompletedAt = &now
	}
}

// SetProgress records progress, clamped to 0-100.
func (ts *TaskState) SetProgress(percent int, message string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.Progress = min(max(percent, 0), 100)
	ts.Message = message
}

// IncrementRetryCount bumps and returns the retry counter.
func (ts *TaskState) IncrementRetryCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.RetryCount++
	return ts.RetryCount
}

// GetRetryCount returns the retry counter.
func (ts *TaskState) GetRetryCount() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.RetryCount
}

// SetError sets the error (thread-safe).
func (ts *TaskState) SetError(err error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.Error = err
}

// GetError returns the error (thread-safe).
func (ts *TaskState) GetError() error {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.Error
}

// finishedBefore reports whether the task reached a terminal state before t.
func (ts *TaskState) finishedBefore(t time.Time) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.Status.IsTerminal() && ts.CompletedAt != nil && ts.CompletedAt.Before(t)
}

// Snapshot returns an immutable copy of the task state.
func (ts *TaskState) Snapshot() TaskSnapshot {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var errMsg string
	if ts.Error != nil {
		errMsg = ts.Error.Error()
	}

	return TaskSnapshot{
		ID:          ts.Task.ID(),
		Name:        ts.Task.Name(),
		RequiresLLM: ts.Task.RequiresLLM(),
		Resource:    ts.Task.Resource(),
		Status:      ts.Status,
		Progress:    ts.Progress,
		Message:     ts.Message,
		RetryCount:  ts.RetryCount,
		EnqueuedAt:  ts.EnqueuedAt,
		StartedAt:   ts.StartedAt,
		CompletedAt: ts.CompletedAt,
		Error:       errMsg,
	}
}

// TaskSnapshot is an immutable view of task state for serialization.
type TaskSnapshot struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	RequiresLLM bool        `json:"requires_llm"`
	Resource    ResourceRef `json:"resource"`
	Status      TaskStatus  `json:"status"`
	Progress    int         `json:"progress"`
	Message     string      `json:"message,omitempty"`
	RetryCount  int         `json:"retry_count"`
	EnqueuedAt  time.Time   `json:"enqueued_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// BaseTask provides common task functionality.
// Embed this in concrete task implementations.
type BaseTask struct {
	id          string
	name        string
	requiresLLM bool
	resource    ResourceRef
}

// NewBaseTask creates a new base task.
func NewBaseTask(name string, requiresLLM bool, resource ResourceRef) BaseTask {
	return BaseTask{
		id:          uuid.New().String(),
		name:        name,
		requiresLLM: requiresLLM,
		resource:    resource,
	}
}

// ID returns the task ID.
func (t BaseTask) ID() string {
	return t.id
}

// Name returns the task name.
func (t BaseTask) Name() string {
	return t.name
}

// RequiresLLM returns whether this task calls the LLM.
func (t BaseTask) RequiresLLM() bool {
	return t.requiresLLM
}

// Resource returns the row the task works on.
func (t BaseTask) Resource() ResourceRef {
	return t.resource
}
