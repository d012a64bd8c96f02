package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

type mockLLMCallRepo struct {
	repositories.LLMCallRepository
	filter  models.LLMCallFilter
	summary *models.LLMCallSummary
}

func (m *mockLLMCallRepo) List(ctx context.Context, filter models.LLMCallFilter) ([]*models.LLMCall, error) {
	m.filter = filter
	return []*models.LLMCall{{Purpose: "talk_script_section"}}, nil
}

func (m *mockLLMCallRepo) Summarize(ctx context.Context, resourceType, resourceID string) (*models.LLMCallSummary, error) {
	return m.summary, nil
}

func TestLLMCallService(t *testing.T) {
	repo := &mockLLMCallRepo{summary: &models.LLMCallSummary{Calls: 4, Failed: 1, TotalTokens: 320}}
	svc := NewLLMCallService(repo, zap.NewNop())
	ctx := context.Background()

	t.Run("list passes the filter through", func(t *testing.T) {
		calls, err := svc.List(ctx, models.LLMCallFilter{ResourceType: ResourceTalkScript, Status: models.LLMCallError})
		require.NoError(t, err)
		assert.Len(t, calls, 1)
		assert.Equal(t, ResourceTalkScript, repo.filter.ResourceType)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := svc.List(ctx, models.LLMCallFilter{Status: "lost"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("summary", func(t *testing.T) {
		s, err := svc.Summary(ctx, ResourceTalkScript, "abc")
		require.NoError(t, err)
		assert.Equal(t, 320, s.TotalTokens)

		_, err = svc.Summary(ctx, "", "abc")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}
