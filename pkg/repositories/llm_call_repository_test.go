//go:build integration

package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/testhelpers"
)

func TestLLMCallRepository_Lifecycle(t *testing.T) {
	db := testhelpers.Postgres(t)
	userID := db.SeedUser(t, auth.RoleSalesRep)
	ctx := db.System(t)
	repo := NewLLMCallRepository()

	scriptID := uuid.NewString()
	ok := &models.LLMCall{
		UserID:       &userID,
		Provider:     "openai",
		Model:        "gpt-4o",
		Purpose:      "talk_script_section",
		ResourceType: "talk_script",
		ResourceID:   scriptID,
		Section:      "opening",
		Prompt:       "Open the meeting with Acme",
	}
	require.NoError(t, repo.Create(ctx, ok))
	assert.NotEqual(t, uuid.Nil, ok.ID)
	assert.Equal(t, models.LLMCallPending, ok.Status)
	assert.False(t, ok.CreatedAt.IsZero())

	done := time.Now()
	ok.Response = "Hello Acme"
	ok.TotalTokens = 40
	ok.Status = models.LLMCallSuccess
	ok.CompletedAt = &done
	require.NoError(t, repo.Complete(ctx, ok))

	failed := &models.LLMCall{
		Provider:     "openai",
		Purpose:      "talk_script_section",
		ResourceType: "talk_script",
		ResourceID:   scriptID,
		Section:      "closing",
		Status:       models.LLMCallError,
		ErrorMessage: "rate limited",
		CompletedAt:  &done,
	}
	require.NoError(t, repo.Create(ctx, failed))

	calls, err := repo.List(ctx, models.LLMCallFilter{ResourceType: "talk_script", ResourceID: scriptID})
	require.NoError(t, err)
	require.Len(t, calls, 2)

	errored, err := repo.List(ctx, models.LLMCallFilter{ResourceID: scriptID, Status: models.LLMCallError})
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, "closing", errored[0].Section)

	summary, err := repo.Summarize(ctx, "talk_script", scriptID)
	require.NoError(t, err)
	assert.Equal(t, &models.LLMCallSummary{Calls: 2, Failed: 1, TotalTokens: 40}, summary)
}

func TestLLMCallRepository_Expiry(t *testing.T) {
	db := testhelpers.Postgres(t)
	ctx := db.System(t)
	repo := NewLLMCallRepository()

	resourceID := uuid.NewString()
	stuck := &models.LLMCall{Provider: "openai", Purpose: "company_analysis", ResourceType: "company", ResourceID: resourceID}
	require.NoError(t, repo.Create(ctx, stuck))

	n, err := repo.FailStuck(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	calls, err := repo.List(ctx, models.LLMCallFilter{ResourceID: resourceID})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, models.LLMCallError, calls[0].Status)
	assert.NotNil(t, calls[0].CompletedAt)

	n, err = repo.DeleteBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	calls, err = repo.List(ctx, models.LLMCallFilter{ResourceID: resourceID})
	require.NoError(t, err)
	assert.Empty(t, calls)
}
