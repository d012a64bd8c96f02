package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
)

// chatHistoryLimit is how many earlier messages are sent with a chat request.
const chatHistoryLimit = 10

// ChatRequest is one turn of the AI assistant.
type ChatRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

// ChatReply is the assistant's answer.
type ChatReply struct {
	Reply  string `json:"reply"`
	Model  string `json:"model"`
	Tokens int    `json:"tokens"`
}

// AIChatService answers free-form questions from sales staff.
type AIChatService interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatReply, error)
}

type aiChatService struct {
	settings   SettingsService
	llmFactory llm.LLMClientFactory
	logger     *zap.Logger
}

// NewAIChatService creates an AIChatService.
func NewAIChatService(settings SettingsService, llmFactory llm.LLMClientFactory, logger *zap.Logger) AIChatService {
	return &aiChatService{settings: settings, llmFactory: llmFactory, logger: logger.Named("ai-chat")}
}

var _ AIChatService = (*aiChatService)(nil)

// recentHistory keeps the last chatHistoryLimit user and assistant messages.
func recentHistory(history []llm.Message) []llm.Message {
	kept := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) > chatHistoryLimit {
		kept = kept[len(kept)-chatHistoryLimit:]
	}
	return kept
}

func (s *aiChatService) Chat(ctx context.Context, req *ChatRequest) (*ChatReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", apperrors.ErrInvalidInput)
	}
	if !s.settings.AIEnabled(ctx) {
		return nil, apperrors.ErrAIDisabled
	}
	ai, err := s.settings.AISettings(ctx)
	if err != nil {
		return nil, err
	}

	client, err := s.llmFactory.Create(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := client.GenerateResponse(llm.WithPurpose(ctx, "chat"), llm.Request{
		SystemMessage: prompts.ChatSystemPrompt,
		Prompt:        message,
		History:       recentHistory(req.History),
		Model:         ai.Model,
		Temperature:   ai.Temperature,
		MaxTokens:     ai.MaxTokens,
	})
	if err != nil {
		s.logger.Warn("Chat completion failed", zap.Error(err))
		return nil, err
	}
	return &ChatReply{Reply: resp.Content, Model: resp.Model, Tokens: resp.TotalTokens}, nil
}
