package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client talks to OpenAI-compatible chat completion endpoints.
type Client struct {
	client      *openai.Client
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewClient creates an OpenAI-compatible client.
func NewClient(cfg *ProviderConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, NewError(ErrorTypeAuth, "api key is not configured", false, nil)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		endpoint:    clientConfig.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger.Named("llm"),
	}, nil
}

// GenerateResponse sends the system message, history and prompt as one chat completion.
func (c *Client) GenerateResponse(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.SystemMessage != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemMessage})
	}
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	c.logger.Debug("LLM request",
		zap.String("model", model),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Int("history", len(req.History)),
		zap.Float64("temperature", req.Temperature),
		zap.Int("max_tokens", maxTokens))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.String("model", model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classifyWithContext(err, model, c.endpoint)
	}

	if len(resp.Choices) == 0 {
		return nil, NewErrorWithContext(ErrorTypeUnknown, "no choices in response", true, nil, model, c.endpoint, 0)
	}

	c.logger.Info("LLM request completed",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	usedModel := resp.Model
	if usedModel == "" {
		usedModel = model
	}

	return &Response{
		Content:          resp.Choices[0].Message.Content,
		Model:            usedModel,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

// Provider returns "openai".
func (c *Client) Provider() string {
	return ProviderOpenAI
}

var _ LLMClient = (*Client)(nil)
