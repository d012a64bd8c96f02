package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// anthropicDefaultMaxTokens is used when neither the request nor settings set a limit;
// the Messages API requires max_tokens.
const anthropicDefaultMaxTokens = 4000

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
func NewAnthropicClient(cfg *ProviderConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, NewError(ErrorTypeAuth, "api key is not configured", false, nil)
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" && !strings.Contains(cfg.BaseURL, "openai.com") {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logger.Named("llm-anthropic"),
	}, nil
}

// GenerateResponse sends history and prompt as user/assistant turns with the system prompt.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]anthropic.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		role := anthropic.RoleUser
		if m.Role == RoleAssistant {
			role = anthropic.RoleAssistant
		}
		messages = append(messages, anthropic.Message{Role: role, Content: []anthropic.MessageContent{textContent(m.Content)}})
	}
	messages = append(messages, anthropic.Message{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{textContent(req.Prompt)}})

	temperature := float32(req.Temperature)

	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(model),
		System:      req.SystemMessage,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages:    messages,
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.String("model", model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classifyWithContext(err, model, "anthropic")
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}

	c.logger.Info("LLM request completed",
		zap.String("model", model),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &Response{
		Content:          sb.String(),
		Model:            model,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

func textContent(s string) anthropic.MessageContent {
	return anthropic.MessageContent{Type: "text", Text: &s}
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// Provider returns "anthropic".
func (c *AnthropicClient) Provider() string {
	return ProviderAnthropic
}

var _ LLMClient = (*AnthropicClient)(nil)
