package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/retry"
)

// testTask is a simple task for testing.
type testTask struct {
	BaseTask
	executeFunc func(ctx context.Context, rt Runtime) error

	mu        sync.Mutex
	failedErr error
}

func newTestTask(name string, requiresLLM bool, fn func(ctx context.Context, rt Runtime) error) *testTask {
	return &testTask{
		BaseTask:    NewBaseTask(name, requiresLLM, ResourceRef{Type: "test", ID: name}),
		executeFunc: fn,
	}
}

func (t *testTask) Execute(ctx context.Context, rt Runtime) error {
	if t.executeFunc != nil {
		return t.executeFunc(ctx, rt)
	}
	return nil
}

func (t *testTask) OnFailure(_ context.Context, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failedErr = err
}

func (t *testTask) failure() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failedErr
}

type transientErr struct{}

func (transientErr) Error() string     { return "upstream overloaded" }
func (transientErr) IsRetryable() bool { return true }

func fastRetry(n int) QueueOption {
	return WithRetryConfig(retry.LinearConfig(n, time.Millisecond))
}

func waitQueue(t *testing.T, q *Queue) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return q.Wait(ctx)
}

func TestQueue_EnqueueAndComplete(t *testing.T) {
	q := New(zap.NewNop())

	var executed atomic.Bool
	q.Enqueue(newTestTask("ok", false, func(ctx context.Context, rt Runtime) error {
		executed.Store(true)
		return nil
	}))

	require.NoError(t, waitQueue(t, q))
	assert.True(t, executed.Load())

	p := q.Progress()
	assert.Equal(t, 1, p.Completed)
	assert.Equal(t, 100, p.Percentage())

	tasks := q.GetTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, 100, tasks[0].Progress)
	assert.Equal(t, "test", tasks[0].Resource.Type)
}

func TestQueue_WaitOnEmptyQueue(t *testing.T) {
	q := New(zap.NewNop())
	assert.NoError(t, waitQueue(t, q))
}

func TestQueue_PermanentFailureCallsHook(t *testing.T) {
	q := New(zap.NewNop(), fastRetry(3))

	expected := errors.New("invalid api key")
	var calls atomic.Int32
	task := newTestTask("bad", true, func(ctx context.Context, rt Runtime) error {
		calls.Add(1)
		return retry.Permanent(expected)
	})
	q.Enqueue(task)

	err := waitQueue(t, q)
	assert.ErrorIs(t, err, expected)
	assert.Equal(t, int32(1), calls.Load(), "permanent errors are not retried")
	assert.ErrorIs(t, task.failure(), expected)
	assert.Equal(t, 1, q.Progress().Failed)
}

func TestQueue_DomainErrorsAreNotRetried(t *testing.T) {
	q := New(zap.NewNop(), fastRetry(3))

	var calls atomic.Int32
	q.Enqueue(newTestTask("gone", false, func(ctx context.Context, rt Runtime) error {
		calls.Add(1)
		return fmt.Errorf("company: %w", apperrors.ErrNotFound)
	}))

	assert.ErrorIs(t, waitQueue(t, q), apperrors.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQueue_RetriesUnclassifiedErrors(t *testing.T) {
	q := New(zap.NewNop(), fastRetry(3))

	var calls atomic.Int32
	task := newTestTask("parse", true, func(ctx context.Context, rt Runtime) error {
		if calls.Add(1) < 2 {
			return errors.New("unexpected end of JSON input")
		}
		return nil
	})
	q.Enqueue(task)

	require.NoError(t, waitQueue(t, q))
	assert.Equal(t, int32(2), calls.Load())
	assert.NoError(t, task.failure())
}

func TestQueue_RetriesTransientErrors(t *testing.T) {
	q := New(zap.NewNop(), fastRetry(3))

	var attempts []int
	var mu sync.Mutex
	task := newTestTask("flaky", true, func(ctx context.Context, rt Runtime) error {
		mu.Lock()
		attempts = append(attempts, rt.Attempt())
		n := len(attempts)
		mu.Unlock()
		if n < 3 {
			return transientErr{}
		}
		return nil
	})
	q.Enqueue(task)

	require.NoError(t, waitQueue(t, q))
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.NoError(t, task.failure())

	snap := q.GetTasks()[0]
	assert.Equal(t, TaskStatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.RetryCount)
	assert.Empty(t, snap.Error)
}

func TestQueue_RetriesExhausted(t *testing.T) {
	q := New(zap.NewNop(), fastRetry(2))

	var calls atomic.Int32
	task := newTestTask("always-flaky", true, func(ctx context.Context, rt Runtime) error {
		calls.Add(1)
		return transientErr{}
	})
	q.Enqueue(task)

	err := waitQueue(t, q)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
	assert.Error(t, task.failure())
}

func TestQueue_ThrottledLLMConcurrency(t *testing.T) {
	q := New(zap.NewNop(), WithStrategy(NewThrottledLLMStrategy(2)))

	var running, peak atomic.Int32
	for i := 0; i < 6; i++ {
		q.Enqueue(newTestTask("llm", true, func(ctx context.Context, rt Runtime) error {
			cur := running.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}

	require.NoError(t, waitQueue(t, q))
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 6, q.Progress().Completed)
}

func TestQueue_DataTasksSerialized(t *testing.T) {
	q := New(zap.NewNop(), WithStrategy(NewThrottledLLMStrategy(4)))

	var running, peak atomic.Int32
	for i := 0; i < 3; i++ {
		q.Enqueue(newTestTask("data", false, func(ctx context.Context, rt Runtime) error {
			cur := running.Add(1)
			if cur > peak.Load() {
				peak.Store(cur)
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}

	require.NoError(t, waitQueue(t, q))
	assert.Equal(t, int32(1), peak.Load())
}

func TestQueue_ProgressReportsAndUpdates(t *testing.T) {
	q := New(zap.NewNop())

	var mu sync.Mutex
	var seen []int
	q.SetOnUpdate(func(snaps []TaskSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range snaps {
			seen = append(seen, s.Progress)
		}
	})

	q.Enqueue(newTestTask("progress", false, func(ctx context.Context, rt Runtime) error {
		rt.ReportProgress(20, "matching")
		rt.ReportProgress(150, "clamped")
		return nil
	}))

	require.NoError(t, waitQueue(t, q))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, 20)
	assert.NotContains(t, seen, 150)
	assert.Equal(t, 100, seen[len(seen)-1])
}

func TestQueue_FollowUpTasks(t *testing.T) {
	q := New(zap.NewNop())

	var child atomic.Bool
	q.Enqueue(newTestTask("parent", false, func(ctx context.Context, rt Runtime) error {
		rt.Enqueue(newTestTask("child", false, func(ctx context.Context, rt Runtime) error {
			child.Store(true)
			return nil
		}))
		return nil
	}))

	require.NoError(t, waitQueue(t, q))
	assert.True(t, child.Load())
	assert.Equal(t, 2, q.Progress().Completed)
}

func TestQueue_FindByResource(t *testing.T) {
	q := New(zap.NewNop())
	q.Enqueue(newTestTask("script-1", false, nil))
	require.NoError(t, waitQueue(t, q))

	snap, ok := q.FindByResource("test", "script-1")
	require.True(t, ok)
	assert.Equal(t, TaskStatusCompleted, snap.Status)

	_, ok = q.FindByResource("test", "missing")
	assert.False(t, ok)
}

func TestQueue_Prune(t *testing.T) {
	q := New(zap.NewNop())
	q.Enqueue(newTestTask("old", false, nil))
	require.NoError(t, waitQueue(t, q))

	assert.Equal(t, 0, q.Prune(time.Hour), "recent tasks are kept")
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, q.Prune(time.Millisecond))
	assert.Empty(t, q.GetTasks())
}

func TestQueue_ShutdownCancelsRunningTasks(t *testing.T) {
	q := New(zap.NewNop())

	started := make(chan struct{})
	task := newTestTask("long", false, func(ctx context.Context, rt Runtime) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	q.Enqueue(task)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	assert.Equal(t, TaskStatusCancelled, q.GetTasks()[0].Status)
	assert.ErrorIs(t, task.failure(), context.Canceled)

	q.Enqueue(newTestTask("late", false, nil))
	assert.Len(t, q.GetTasks(), 1, "enqueue after shutdown is ignored")
}

func TestSlotStrategy(t *testing.T) {
	s := NewSerializedStrategy()
	assert.True(t, s.CanStart(KindLLM))
	s.OnStart(KindLLM)
	assert.False(t, s.CanStart(KindLLM))
	assert.True(t, s.CanStart(KindData))
	s.OnComplete(KindLLM)
	s.OnComplete(KindLLM)
	assert.Equal(t, 0, s.Running(KindLLM))

	unlimited := NewSlotStrategy(0, 1)
	for i := 0; i < 10; i++ {
		unlimited.OnStart(KindLLM)
	}
	assert.True(t, unlimited.CanStart(KindLLM))
}
