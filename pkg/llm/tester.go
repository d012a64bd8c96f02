package llm

import (
	"context"
	"fmt"
	"time"
)

// testPrompt is the cheapest prompt that proves the key and model work.
const testPrompt = "Say 'ok' and nothing else."

// TestResult reports a connection test.
type TestResult struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	ErrorType      ErrorType `json:"error_type,omitempty"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	Reply          string    `json:"reply,omitempty"`
}

// CheckConnection sends one small completion (max 50 tokens) through client.
func CheckConnection(ctx context.Context, client LLMClient, model string, timeout time.Duration) *TestResult {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if model == "" {
		model = client.GetModel()
	}

	result := &TestResult{Provider: client.Provider(), Model: model}

	start := time.Now()
	resp, err := client.GenerateResponse(ctx, Request{
		Prompt:      testPrompt,
		Model:       model,
		Temperature: 0,
		MaxTokens:   50,
	})
	result.ResponseTimeMs = time.Since(start).Milliseconds()

	if err != nil {
		classified := ClassifyError(err)
		result.ErrorType = classified.Type
		result.Message = describeFailure(classified)
		return result
	}

	result.Success = true
	result.Reply = resp.Content
	result.Message = fmt.Sprintf("connection successful (model: %s, %dms)", model, result.ResponseTimeMs)
	return result
}

func describeFailure(e *Error) string {
	switch e.Type {
	case ErrorTypeAuth:
		return "invalid API key"
	case ErrorTypeModel:
		return "model not found"
	case ErrorTypeEndpoint:
		return "could not reach the provider: " + e.Message
	case ErrorTypeRateLimit:
		return "rate limited by the provider"
	case ErrorTypeUnavailable:
		return "provider unavailable: " + e.Message
	default:
		return e.Error()
	}
}
