package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
)

// stubMatching returns a fixed ranking and learning context.
type stubMatching struct {
	result   *MatchResult
	learning *prompts.LearningContext
	err      error
}

func (s *stubMatching) Match(ctx context.Context, company *models.Company, analysis string, pinned []uuid.UUID) (*MatchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubMatching) LearningContext(ctx context.Context, industry string) (*prompts.LearningContext, error) {
	if s.learning == nil {
		return &prompts.LearningContext{}, nil
	}
	return s.learning, nil
}

type scriptTaskFixture struct {
	task     *TalkScriptTask
	repo     *mockTalkScriptRepo
	client   *llm.MockLLMClient
	script   *models.TalkScript
	products []*models.Product
}

func newScriptTaskFixture(t *testing.T, sections []string, templates ...*models.PromptTemplate) *scriptTaskFixture {
	t.Helper()

	company := &models.Company{ID: uuid.New(), CompanyName: "Acme", Industry: "Retail"}
	owner := uuid.New()
	script := &models.TalkScript{
		ID:               uuid.New(),
		CompanyID:        company.ID,
		CompanyName:      "Acme",
		SelectedSections: sections,
		GenerationStatus: models.StatusPending,
		CreatedBy:        &owner,
	}
	repo := newMockTalkScriptRepo()
	repo.scripts[script.ID] = script

	products := testProducts()[:2]
	matching := &stubMatching{result: &MatchResult{
		Matches: []ProductMatch{
			{Product: products[1], RelevanceScore: 0.9, MatchingReasons: []string{"dashboards"}, ProposalAngle: "visibility"},
			{Product: products[0], RelevanceScore: 0.5, ProposalAngle: "retention"},
		},
		Tokens: 25,
	}}

	factory := llm.NewMockClientFactory()
	templateRepo := newMockTemplateRepo(templates...)
	task := NewTalkScriptTask(TalkScriptTaskDeps{
		Repo:         repo,
		CompanyRepo:  &mockCompanyRepo{company: company},
		TemplateRepo: templateRepo,
		Matching:     matching,
		Templates:    NewPromptTemplateService(templateRepo, newMockSettings(), zap.NewNop()),
		LLMFactory:   factory,
		TaskCtx:      passthroughTaskCtx,
		Logger:       zap.NewNop(),
	}, script)

	clock := testNow
	task.now = func() time.Time {
		clock = clock.Add(2 * time.Second)
		return clock
	}

	return &scriptTaskFixture{task: task, repo: repo, client: factory.MockClient, script: script, products: products}
}

// replyPerSection answers each section call by its label and fails the given one.
func replyPerSection(failing string) func(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		section := llm.Labels(ctx)["section"]
		if section == failing {
			return nil, errors.New("provider returned 500")
		}
		return &llm.Response{Content: "Script for " + section, Model: "gpt-4o", TotalTokens: 100}, nil
	}
}

func TestTalkScriptTask_Execute(t *testing.T) {
	sections := []string{prompts.SectionOpening, prompts.SectionSolutionProposal, prompts.SectionClosing}
	f := newScriptTaskFixture(t, sections)
	f.client.GenerateResponseFunc = replyPerSection(prompts.SectionSolutionProposal)

	rt := &mockRuntime{}
	require.NoError(t, f.task.Execute(context.Background(), rt))

	assert.Equal(t, []int{0, 20, 50, 60, 70, 80, 80, 100}, rt.progress)
	assert.Equal(t, "Generated Solution Proposal", rt.messages[4])
	assert.Equal(t, []string{models.StatusProcessing}, f.repo.statuses)

	require.NotNil(t, f.repo.saved)
	gen := f.repo.saved
	assert.Equal(t, "Script for opening", gen.Sections[prompts.SectionOpening])
	assert.Equal(t, "Script for closing", gen.Sections[prompts.SectionClosing])
	assert.Equal(t, "[generation error: provider returned 500]", gen.Sections[prompts.SectionSolutionProposal])
	assert.Equal(t, 25+100+100, gen.TotalTokens, "matching tokens plus successful sections")
	assert.Equal(t, "gpt-4o", gen.ModelUsed)
	assert.Greater(t, gen.GenerationTimeSeconds, 0.0)

	assert.Equal(t, 3, f.client.Calls(), "a failed section does not stop the others")

	require.Len(t, f.repo.links, 2)
	assert.Equal(t, f.products[1].ID, f.repo.links[0].ProductID)
	assert.Equal(t, 1, f.repo.links[0].ProposalOrder)
	assert.Equal(t, []string{"dashboards"}, f.repo.links[0].MatchingReasons)
	assert.Equal(t, f.products[0].ID, f.repo.links[1].ProductID)
	assert.Equal(t, 2, f.repo.links[1].ProposalOrder)
	assert.Equal(t, f.script.ID, f.repo.links[1].TalkScriptID)
}

func TestTalkScriptTask_SectionPromptsCarryContext(t *testing.T) {
	f := newScriptTaskFixture(t, []string{prompts.SectionOpening})
	f.client.DefaultContent = "Hello"

	require.NoError(t, f.task.Execute(context.Background(), &mockRuntime{}))

	reqs := f.client.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "Acme")
	assert.Contains(t, reqs[0].Prompt, "Analytics", "matched products are listed")
	assert.Equal(t, 25+10, f.repo.saved.TotalTokens)
}

func TestTalkScriptTask_ChosenTemplate(t *testing.T) {
	chosen := &models.PromptTemplate{
		ID:                 uuid.New(),
		Name:               "warm-opening",
		TemplateType:       prompts.TypeScriptOpening,
		SystemPrompt:       "You open meetings warmly.",
		UserPromptTemplate: "Greet {{company_name}} in the {{industry}} way",
		IsActive:           true,
	}
	f := newScriptTaskFixture(t, []string{prompts.SectionOpening, prompts.SectionClosing}, chosen)
	f.script.TemplateID = &chosen.ID

	var prompted []string
	f.client.GenerateResponseFunc = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		prompted = append(prompted, llm.Labels(ctx)["section"]+": "+req.Prompt)
		return &llm.Response{Content: "ok", TotalTokens: 1}, nil
	}

	require.NoError(t, f.task.Execute(context.Background(), &mockRuntime{}))

	require.Len(t, prompted, 2)
	assert.Equal(t, "opening: Greet Acme in the Retail way", prompted[0])
	assert.True(t, strings.HasPrefix(prompted[1], "closing: "))
	assert.NotContains(t, prompted[1], "Greet Acme", "a template of another type leaves the section on its default")
}

func TestTalkScriptTask_MissingChosenTemplateFallsBack(t *testing.T) {
	f := newScriptTaskFixture(t, []string{prompts.SectionOpening})
	missing := uuid.New()
	f.script.TemplateID = &missing

	require.NoError(t, f.task.Execute(context.Background(), &mockRuntime{}))
	assert.Equal(t, 1, f.client.Calls())
	assert.NotContains(t, f.repo.saved.Sections[prompts.SectionOpening], "generation error")
}

func TestTalkScriptTask_MatchingFailure(t *testing.T) {
	f := newScriptTaskFixture(t, []string{prompts.SectionOpening})
	f.task.matching = &stubMatching{err: errors.New("catalogue unavailable")}

	err := f.task.Execute(context.Background(), &mockRuntime{})
	require.ErrorContains(t, err, "match products")
	assert.Nil(t, f.repo.saved)
	assert.Zero(t, f.client.Calls())

	f.task.OnFailure(context.Background(), err)
	assert.Equal(t, []string{models.StatusProcessing, models.StatusFailed}, f.repo.statuses)
	assert.Contains(t, f.repo.failure, "catalogue unavailable")
}
