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

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// mockRecorder keeps recorded calls in memory.
type mockRecorder struct {
	mu          sync.Mutex
	pending     []models.LLMCall
	completions []*models.LLMCall
	records     []*models.LLMCall
	pendingErr  error
}

func (m *mockRecorder) SavePending(ctx context.Context, call *models.LLMCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pendingErr != nil {
		return m.pendingErr
	}
	call.Status = models.LLMCallPending
	m.pending = append(m.pending, *call)
	return nil
}

func (m *mockRecorder) RecordCompletion(call *models.LLMCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, call)
}

func (m *mockRecorder) Record(call *models.LLMCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, call)
}

func newRecordingTestClient(mock *MockLLMClient, recorder CallRecorder) *RecordingClient {
	c := NewRecordingClient(mock, recorder)
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	calls := 0
	c.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * 250 * time.Millisecond)
	}
	return c
}

func TestRecordingClient_RecordsSuccess(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, req Request) (*Response, error) {
		return &Response{Content: "Hello", Model: "gpt-4o-2024", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
	}
	recorder := &mockRecorder{}
	client := newRecordingTestClient(mock, recorder)

	ctx := WithLabels(context.Background(), map[string]string{
		"purpose":       "script_opening",
		"resource_type": "talk_script",
		"resource_id":   "s-1",
		"section":       "opening",
	})
	resp, err := client.GenerateResponse(ctx, Request{SystemMessage: "sys", Prompt: "Say hello", Temperature: 0.7})

	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Content)

	require.Len(t, recorder.pending, 1)
	pending := recorder.pending[0]
	assert.Equal(t, models.LLMCallPending, pending.Status)
	assert.Equal(t, "mock-model", pending.Model)
	assert.Equal(t, "mock", pending.Provider)
	assert.Equal(t, "Say hello", pending.Prompt)
	assert.Equal(t, "sys", pending.SystemMessage)
	assert.Equal(t, "talk_script", pending.ResourceType)
	assert.Equal(t, "s-1", pending.ResourceID)
	assert.Equal(t, "opening", pending.Section)
	assert.Equal(t, "script_opening", pending.Purpose)
	require.NotNil(t, pending.Temperature)
	assert.InDelta(t, 0.7, *pending.Temperature, 1e-9)

	require.Len(t, recorder.completions, 1)
	done := recorder.completions[0]
	assert.Equal(t, pending.ID, done.ID)
	assert.Equal(t, models.LLMCallSuccess, done.Status)
	assert.Equal(t, "Hello", done.Response)
	assert.Equal(t, "gpt-4o-2024", done.Model)
	assert.Equal(t, 15, done.TotalTokens)
	assert.Equal(t, 250, done.DurationMs)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, recorder.records)
}

func TestRecordingClient_RecordsError(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, req Request) (*Response, error) {
		return nil, errors.New("rate limit exceeded")
	}
	recorder := &mockRecorder{}
	client := newRecordingTestClient(mock, recorder)

	_, err := client.GenerateResponse(context.Background(), Request{Prompt: "x"})

	require.Error(t, err)
	require.Len(t, recorder.completions, 1)
	done := recorder.completions[0]
	assert.Equal(t, models.LLMCallError, done.Status)
	assert.Equal(t, "rate limit exceeded", done.ErrorMessage)
	assert.Empty(t, done.Response)
	assert.Zero(t, done.TotalTokens)
}

func TestRecordingClient_FallsBackWhenPendingSaveFails(t *testing.T) {
	mock := NewMockLLMClient()
	mock.DefaultContent = "ok"
	recorder := &mockRecorder{pendingErr: errors.New("db down")}
	client := newRecordingTestClient(mock, recorder)

	resp, err := client.GenerateResponse(context.Background(), Request{Prompt: "x"})

	require.NoError(t, err, "recording problems never fail the call")
	assert.Equal(t, "ok", resp.Content)
	assert.Empty(t, recorder.completions)
	require.Len(t, recorder.records, 1)
	assert.Equal(t, models.LLMCallSuccess, recorder.records[0].Status)
}

func TestRecordingClient_CallerID(t *testing.T) {
	mock := NewMockLLMClient()

	t.Run("authenticated user", func(t *testing.T) {
		recorder := &mockRecorder{}
		userID := uuid.New()
		ctx := auth.WithClaims(context.Background(), auth.ClaimsFor(auth.Principal{UserID: userID, Role: auth.RoleSalesRep}, "ekaya-sales"))

		_, err := newRecordingTestClient(mock, recorder).GenerateResponse(ctx, Request{Prompt: "x"})
		require.NoError(t, err)
		require.NotNil(t, recorder.pending[0].UserID)
		assert.Equal(t, userID, *recorder.pending[0].UserID)
	})

	t.Run("task owner label", func(t *testing.T) {
		recorder := &mockRecorder{}
		owner := uuid.New()
		ctx := WithLabels(context.Background(), map[string]string{"user_id": owner.String()})

		_, err := newRecordingTestClient(mock, recorder).GenerateResponse(ctx, Request{Prompt: "x"})
		require.NoError(t, err)
		require.NotNil(t, recorder.pending[0].UserID)
		assert.Equal(t, owner, *recorder.pending[0].UserID)
	})

	t.Run("system call", func(t *testing.T) {
		recorder := &mockRecorder{}
		_, err := newRecordingTestClient(mock, recorder).GenerateResponse(context.Background(), Request{Prompt: "x"})
		require.NoError(t, err)
		assert.Nil(t, recorder.pending[0].UserID)
	})
}
