package llm

import (
	"context"
	"sync"
)

// MockLLMClient is a configurable mock for testing LLM functionality.
// Set GenerateResponseFunc to control behavior. Safe for concurrent use.
type MockLLMClient struct {
	// GenerateResponseFunc is called when GenerateResponse is invoked.
	// If nil, returns Response{Content: DefaultContent}.
	GenerateResponseFunc func(ctx context.Context, req Request) (*Response, error)

	// DefaultContent is returned when GenerateResponseFunc is nil.
	DefaultContent string

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	mu       sync.Mutex
	requests []Request
}

// NewMockLLMClient creates a new mock with sensible defaults.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{Model: "mock-model"}
}

// GenerateResponse implements LLMClient.
func (m *MockLLMClient) GenerateResponse(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, req)
	}
	return &Response{Content: m.DefaultContent, Model: m.GetModel(), TotalTokens: 10}, nil
}

// GetModel implements LLMClient.
func (m *MockLLMClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// Provider implements LLMClient.
func (m *MockLLMClient) Provider() string {
	return "mock"
}

// Calls returns the number of GenerateResponse calls.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockLLMClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Reset clears recorded requests.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

var _ LLMClient = (*MockLLMClient)(nil)

// MockClientFactory is a configurable mock for testing LLM client creation.
type MockClientFactory struct {
	// CreateFunc is called when Create is invoked. If nil, returns MockClient.
	CreateFunc func(ctx context.Context) (LLMClient, error)

	// MockClient is the default client returned if CreateFunc is not set.
	MockClient *MockLLMClient
}

// NewMockClientFactory creates a new mock client factory.
func NewMockClientFactory() *MockClientFactory {
	return &MockClientFactory{MockClient: NewMockLLMClient()}
}

// Create implements LLMClientFactory.
func (f *MockClientFactory) Create(ctx context.Context) (LLMClient, error) {
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx)
	}
	return f.MockClient, nil
}

var _ LLMClientFactory = (*MockClientFactory)(nil)
