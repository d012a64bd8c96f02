package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

// mockCallRepo tracks created and completed calls. Unused methods panic through the nil embedded interface.
type mockCallRepo struct {
	repositories.LLMCallRepository
	mu        sync.Mutex
	created   []*models.LLMCall
	completed []*models.LLMCall
	createErr error
}

func (m *mockCallRepo) Create(ctx context.Context, call *models.LLMCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, call)
	return nil
}

func (m *mockCallRepo) Complete(ctx context.Context, call *models.LLMCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, call)
	return nil
}

type countingScope struct {
	mu     sync.Mutex
	opened int
	closed int
	err    error
}

func (s *countingScope) open(ctx context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, nil, s.err
	}
	s.opened++
	return ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed++
	}, nil
}

func TestAsyncCallRecorder_PendingThenCompletion(t *testing.T) {
	repo := &mockCallRepo{}
	scope := &countingScope{}
	recorder := NewAsyncCallRecorder(repo, scope.open, zap.NewNop(), 10)

	call := &models.LLMCall{ID: uuid.New(), Purpose: "csv_analysis"}
	require.NoError(t, recorder.SavePending(context.Background(), call))
	assert.Equal(t, models.LLMCallPending, call.Status)

	call.Status = models.LLMCallSuccess
	recorder.RecordCompletion(call)
	recorder.Record(&models.LLMCall{ID: uuid.New(), Status: models.LLMCallError})
	recorder.Close()

	assert.Len(t, repo.created, 2)
	require.Len(t, repo.completed, 1)
	assert.Equal(t, call.ID, repo.completed[0].ID)
	assert.Equal(t, scope.opened, scope.closed, "every scope is released")
}

func TestAsyncCallRecorder_SavePendingErrors(t *testing.T) {
	t.Run("repository error", func(t *testing.T) {
		recorder := NewAsyncCallRecorder(&mockCallRepo{createErr: errors.New("insert failed")}, (&countingScope{}).open, zap.NewNop(), 1)
		defer recorder.Close()
		assert.Error(t, recorder.SavePending(context.Background(), &models.LLMCall{ID: uuid.New()}))
	})

	t.Run("scope error", func(t *testing.T) {
		recorder := NewAsyncCallRecorder(&mockCallRepo{}, (&countingScope{err: errors.New("pool closed")}).open, zap.NewNop(), 1)
		defer recorder.Close()
		assert.Error(t, recorder.SavePending(context.Background(), &models.LLMCall{ID: uuid.New()}))
	})
}

func TestAsyncCallRecorder_DropsWhenQueueFull(t *testing.T) {
	repo := &mockCallRepo{}
	block := make(chan struct{})
	scope := func(ctx context.Context) (context.Context, func(), error) {
		<-block
		return ctx, func() {}, nil
	}
	recorder := NewAsyncCallRecorder(repo, scope, zap.NewNop(), 1)

	for i := 0; i < 5; i++ {
		recorder.Record(&models.LLMCall{ID: uuid.New()})
	}
	close(block)
	recorder.Close()

	// One record is held by the writer and one by the queue; the rest are dropped.
	assert.LessOrEqual(t, len(repo.created), 2)
	assert.GreaterOrEqual(t, len(repo.created), 1)
}

func TestClientFactory_WrapsRecorder(t *testing.T) {
	factory := NewClientFactory(&stubConfigProvider{cfg: &ProviderConfig{Provider: ProviderOpenAI, APIKey: "sk-test", Model: "gpt-4o", Timeout: time.Second}}, nil, zap.NewNop())
	factory.SetRecorder(&mockRecorder{})

	client, err := factory.Create(context.Background())
	require.NoError(t, err)

	metered, ok := client.(*MeteredClient)
	require.True(t, ok)
	_, ok = metered.inner.(*RecordingClient)
	assert.True(t, ok)
}
