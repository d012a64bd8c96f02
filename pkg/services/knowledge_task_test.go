package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
)

func newKnowledgeTaskFixture(content, reply string) (*KnowledgeStructuringTask, *mockKnowledgeRepo, *llm.MockLLMClient) {
	k := &models.ProductKnowledge{ID: uuid.New(), ProductID: uuid.New(), Title: "Datasheet", Content: content, Status: models.StatusPending}
	repo := &mockKnowledgeRepo{chunks: []*models.ProductKnowledge{k}}

	factory := llm.NewMockClientFactory()
	factory.MockClient.DefaultContent = reply
	templates := NewPromptTemplateService(newMockTemplateRepo(), newMockSettings(), zap.NewNop())

	task := NewKnowledgeStructuringTask(repo, templates, factory, passthroughTaskCtx, zap.NewNop(), k, "Ledger Pro", nil)
	return task, repo, factory.MockClient
}

func decodeStructure(t *testing.T, data json.RawMessage) prompts.KnowledgeStructure {
	t.Helper()
	var s prompts.KnowledgeStructure
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestKnowledgeStructuringTask_Execute(t *testing.T) {
	task, repo, client := newKnowledgeTaskFixture("Ledger Pro reconciles bank feeds nightly.", `Here you go:
{"overview": "Nightly bank reconciliation", "features": ["Bank feeds", "Rules"], "pricing": 49, "specifications": {"seats": 10}}`)

	assert.Equal(t, `Structure "Datasheet"`, task.Name())

	rt := &mockRuntime{}
	require.NoError(t, task.Execute(context.Background(), rt))

	assert.Equal(t, []int{20}, rt.progress)
	assert.Equal(t, []string{models.StatusProcessing}, repo.statuses)
	assert.Empty(t, repo.note)

	s := decodeStructure(t, repo.structured)
	assert.Equal(t, "Nightly bank reconciliation", s.Overview.String())
	assert.Equal(t, []string{"Bank feeds", "Rules"}, s.Features.Strings())
	assert.Equal(t, "49", s.Pricing.String())
	assert.Equal(t, "10", s.Specifications["seats"].String())

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "Ledger Pro")
	assert.Contains(t, reqs[0].Prompt, "reconciles bank feeds")
	assert.InDelta(t, knowledgeStructuringTemperature, reqs[0].Temperature, 1e-9)
}

func TestKnowledgeStructuringTask_UnusableReplyStoresFallback(t *testing.T) {
	content := strings.Repeat("Ledger Pro keeps books. ", 40)

	for name, reply := range map[string]string{
		"not JSON":       "I could not find product details.",
		"empty overview": `{"overview": "", "features": ["x"]}`,
	} {
		t.Run(name, func(t *testing.T) {
			task, repo, _ := newKnowledgeTaskFixture(content, reply)

			require.NoError(t, task.Execute(context.Background(), &mockRuntime{}))

			s := decodeStructure(t, repo.structured)
			assert.Equal(t, prompts.Truncate(content, prompts.KnowledgeOverviewCut), s.Overview.String())
			assert.Empty(t, s.Features)
			assert.NotEmpty(t, repo.note)
		})
	}
}

func TestKnowledgeStructuringTask_Failure(t *testing.T) {
	task, repo, client := newKnowledgeTaskFixture("Ledger Pro reconciles bank feeds nightly.", "")
	client.GenerateResponseFunc = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		assert.Equal(t, string(prompts.TypeProductExtraction), llm.Labels(ctx)["purpose"])
		return nil, errors.New("invalid api key")
	}

	err := task.Execute(context.Background(), &mockRuntime{})
	require.ErrorContains(t, err, "knowledge extraction")
	assert.Nil(t, repo.structured)

	task.OnFailure(context.Background(), err)
	assert.Equal(t, []string{models.StatusProcessing, models.StatusFailed}, repo.statuses)
	s := decodeStructure(t, repo.structured)
	assert.Equal(t, "Ledger Pro reconciles bank feeds nightly.", s.Overview.String(), "the chunk keeps a plain overview")
	assert.Contains(t, repo.note, "invalid api key")
}
