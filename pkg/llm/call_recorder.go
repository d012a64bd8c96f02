package llm

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

// ScopeFunc opens the database scope the recorder writes in.
// Returns the scoped context, a cleanup function (MUST be called), and any error.
type ScopeFunc func(ctx context.Context) (context.Context, func(), error)

// CallRecorder persists LLM calls.
type CallRecorder interface {
	// SavePending inserts the call before the provider is contacted, so
	// in-flight calls are visible.
	SavePending(ctx context.Context, call *models.LLMCall) error
	// RecordCompletion queues the final state of a pending call.
	RecordCompletion(call *models.LLMCall)
	// Record queues a finished call that has no pending row.
	Record(call *models.LLMCall)
}

type recordOp struct {
	call     *models.LLMCall
	isUpdate bool
}

// AsyncCallRecorder writes completions from a background goroutine so LLM
// callers never wait on the audit table.
type AsyncCallRecorder struct {
	repo   repositories.LLMCallRepository
	scope  ScopeFunc
	logger *zap.Logger
	queue  chan recordOp
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncCallRecorder starts a recorder. When the queue of queueSize entries
// is full, records are dropped with a warning.
func NewAsyncCallRecorder(repo repositories.LLMCallRepository, scope ScopeFunc, logger *zap.Logger, queueSize int) *AsyncCallRecorder {
	if queueSize <= 0 {
		queueSize = 100
	}
	r := &AsyncCallRecorder{
		repo:   repo,
		scope:  scope,
		logger: logger.Named("llm-call-recorder"),
		queue:  make(chan recordOp, queueSize),
		done:   make(chan struct{}),
	}
	go r.processQueue()
	return r
}

var _ CallRecorder = (*AsyncCallRecorder)(nil)

func (r *AsyncCallRecorder) SavePending(ctx context.Context, call *models.LLMCall) error {
	call.Status = models.LLMCallPending

	scoped, cleanup, err := r.scope(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := r.repo.Create(scoped, call); err != nil {
		r.logger.Error("Failed to save pending LLM call",
			zap.String("purpose", call.Purpose),
			zap.String("model", call.Model),
			zap.Error(err))
		return err
	}
	return nil
}

func (r *AsyncCallRecorder) RecordCompletion(call *models.LLMCall) {
	r.enqueue(recordOp{call: call, isUpdate: true})
}

func (r *AsyncCallRecorder) Record(call *models.LLMCall) {
	r.enqueue(recordOp{call: call})
}

func (r *AsyncCallRecorder) enqueue(op recordOp) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("LLM call recorder closed, dropping entry", zap.String("id", op.call.ID.String()))
		return
	}
	select {
	case r.queue <- op:
	default:
		r.logger.Warn("LLM call record queue full, dropping entry",
			zap.String("id", op.call.ID.String()),
			zap.String("purpose", op.call.Purpose),
			zap.Bool("update", op.isUpdate))
	}
}

// Close stops accepting records and waits for queued ones to be written.
func (r *AsyncCallRecorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *AsyncCallRecorder) processQueue() {
	defer close(r.done)
	for op := range r.queue {
		r.write(op)
	}
}

func (r *AsyncCallRecorder) write(op recordOp) {
	ctx, cleanup, err := r.scope(context.Background())
	if err != nil {
		r.logger.Error("Failed to acquire scope for LLM call record",
			zap.String("id", op.call.ID.String()),
			zap.Error(err))
		return
	}
	defer cleanup()

	if op.isUpdate {
		err = r.repo.Complete(ctx, op.call)
	} else {
		err = r.repo.Create(ctx, op.call)
	}
	if err != nil {
		r.logger.Error("Failed to write LLM call record",
			zap.String("id", op.call.ID.String()),
			zap.String("status", op.call.Status),
			zap.Bool("update", op.isUpdate),
			zap.Error(err))
	}
}
