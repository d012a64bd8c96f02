package llm

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// RecordingClient wraps an LLMClient and records every call with the
// labels on its context.
type RecordingClient struct {
	inner    LLMClient
	recorder CallRecorder
	now      func() time.Time
}

// NewRecordingClient wraps inner.
func NewRecordingClient(inner LLMClient, recorder CallRecorder) *RecordingClient {
	return &RecordingClient{inner: inner, recorder: recorder, now: time.Now}
}

var _ LLMClient = (*RecordingClient)(nil)

// GenerateResponse inserts a pending record, calls the inner client and
// queues the outcome. Recording failures never fail the call.
func (c *RecordingClient) GenerateResponse(ctx context.Context, req Request) (*Response, error) {
	labels := Labels(ctx)
	call := &models.LLMCall{
		ID:            uuid.New(),
		Provider:      c.inner.Provider(),
		Model:         req.Model,
		Purpose:       labels["purpose"],
		ResourceType:  labels["resource_type"],
		ResourceID:    labels["resource_id"],
		Section:       labels["section"],
		SystemMessage: req.SystemMessage,
		Prompt:        req.Prompt,
	}
	if call.Model == "" {
		call.Model = c.inner.GetModel()
	}
	if req.Temperature != 0 {
		temperature := req.Temperature
		call.Temperature = &temperature
	}
	if id, ok := callerID(ctx, labels); ok {
		call.UserID = &id
	}

	pendingSaved := c.recorder.SavePending(ctx, call) == nil

	start := c.now()
	resp, err := c.inner.GenerateResponse(ctx, req)
	finished := c.now()
	call.DurationMs = int(finished.Sub(start).Milliseconds())
	call.CompletedAt = &finished

	if err != nil {
		call.Status = models.LLMCallError
		call.ErrorMessage = err.Error()
	} else {
		call.Status = models.LLMCallSuccess
		call.Response = resp.Content
		if resp.Model != "" {
			call.Model = resp.Model
		}
		call.PromptTokens = resp.PromptTokens
		call.CompletionTokens = resp.CompletionTokens
		call.TotalTokens = resp.TotalTokens
	}

	if pendingSaved {
		c.recorder.RecordCompletion(call)
	} else {
		c.recorder.Record(call)
	}
	return resp, err
}

// GetModel returns the inner client's model.
func (c *RecordingClient) GetModel() string {
	return c.inner.GetModel()
}

// Provider returns the inner client's provider.
func (c *RecordingClient) Provider() string {
	return c.inner.Provider()
}

// callerID is the authenticated user, or the task owner label for background work.
func callerID(ctx context.Context, labels map[string]string) (uuid.UUID, bool) {
	if id, ok := auth.GetUserIDFromContext(ctx); ok && id != uuid.Nil {
		return id, true
	}
	id, err := uuid.Parse(labels["user_id"])
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
