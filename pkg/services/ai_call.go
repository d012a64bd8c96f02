package services

import (
	"context"

	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// generate sends a resolved prompt through a client from factory.
func generate(ctx context.Context, factory llm.LLMClientFactory, p *models.ResolvedPrompt) (*llm.Response, error) {
	client, err := factory.Create(ctx)
	if err != nil {
		return nil, err
	}
	return client.GenerateResponse(ctx, llm.Request{
		SystemMessage: p.System,
		Prompt:        p.User,
		Model:         p.Model,
		Temperature:   p.Temperature,
		MaxTokens:     p.MaxTokens,
	})
}

func float64Ptr(v float64) *float64 {
	return &v
}
