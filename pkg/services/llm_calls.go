package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

// LLMCallService exposes the audit trail of AI provider calls.
type LLMCallService interface {
	List(ctx context.Context, filter models.LLMCallFilter) ([]*models.LLMCall, error)
	// Summary totals the calls made while working on one resource.
	Summary(ctx context.Context, resourceType, resourceID string) (*models.LLMCallSummary, error)
}

type llmCallService struct {
	repo   repositories.LLMCallRepository
	logger *zap.Logger
}

// NewLLMCallService creates an LLMCallService.
func NewLLMCallService(repo repositories.LLMCallRepository, logger *zap.Logger) LLMCallService {
	return &llmCallService{repo: repo, logger: logger.Named("llm-calls")}
}

var _ LLMCallService = (*llmCallService)(nil)

func (s *llmCallService) List(ctx context.Context, filter models.LLMCallFilter) ([]*models.LLMCall, error) {
	switch filter.Status {
	case "", models.LLMCallPending, models.LLMCallSuccess, models.LLMCallError:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidInput, filter.Status)
	}
	return s.repo.List(ctx, filter)
}

func (s *llmCallService) Summary(ctx context.Context, resourceType, resourceID string) (*models.LLMCallSummary, error) {
	if resourceType == "" || resourceID == "" {
		return nil, fmt.Errorf("%w: resource_type and resource_id are required", apperrors.ErrInvalidInput)
	}
	return s.repo.Summarize(ctx, resourceType, resourceID)
}
