// Package llm provides chat-completion clients for OpenAI and Anthropic.
package llm

import (
	"context"
	"time"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Message roles used in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of prior conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
type Request struct {
	SystemMessage string
	Prompt        string
	History       []Message
	// Model overrides the client default when set.
	Model       string
	Temperature float64
	MaxTokens   int
}

// Response carries the reply text and token usage.
type Response struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// LLMClient defines the interface for LLM operations.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	GenerateResponse(ctx context.Context, req Request) (*Response, error)

	// GetModel returns the default model name.
	GetModel() string

	// Provider returns "openai" or "anthropic".
	Provider() string
}

// ProviderConfig is the resolved provider, credentials and defaults for a client.
type ProviderConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ConfigProvider resolves the effective provider configuration.
// The settings service implements it; it breaks the llm -> services import cycle.
type ConfigProvider interface {
	ResolveLLMConfig(ctx context.Context) (*ProviderConfig, error)
}

// UsageMeter enforces and records the daily token budget.
type UsageMeter interface {
	// CheckBudget returns an error when no more tokens may be spent today.
	CheckBudget(ctx context.Context) error
	// RecordUsage adds tokens to today's counter.
	RecordUsage(ctx context.Context, tokens int)
}

// LLMClientFactory creates clients for the current settings.
type LLMClientFactory interface {
	Create(ctx context.Context) (LLMClient, error)
}
