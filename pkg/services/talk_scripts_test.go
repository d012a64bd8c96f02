package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

// mockTalkScriptRepo keeps scripts in memory. Unused methods panic through the nil embedded interface.
type mockTalkScriptRepo struct {
	repositories.TalkScriptRepository
	scripts  map[uuid.UUID]*models.TalkScript
	updated  int
	statuses []string
	failure  string
	saved    *models.ScriptGeneration
	links    []*models.ProposalProductLink
}

func newMockTalkScriptRepo() *mockTalkScriptRepo {
	return &mockTalkScriptRepo{scripts: make(map[uuid.UUID]*models.TalkScript)}
}

func (m *mockTalkScriptRepo) Create(ctx context.Context, s *models.TalkScript) error {
	s.ID = uuid.New()
	s.Version = 1
	if id, ok := auth.GetUserIDFromContext(ctx); ok {
		s.CreatedBy = &id
	}
	m.scripts[s.ID] = s
	return nil
}

func (m *mockTalkScriptRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.TalkScript, error) {
	s, ok := m.scripts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

func (m *mockTalkScriptRepo) UpdateContent(ctx context.Context, s *models.TalkScript) error {
	m.updated++
	return nil
}

func (m *mockTalkScriptRepo) MarkRegenerating(ctx context.Context, id uuid.UUID, sections []string) (*models.TalkScript, error) {
	s := m.scripts[id]
	if s.GenerationStatus == models.StatusProcessing {
		return nil, apperrors.ErrAlreadyProcessing
	}
	s.Version++
	s.SelectedSections = sections
	s.GenerationStatus = models.StatusPending
	return s, nil
}

func (m *mockTalkScriptRepo) SetGenerationStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	m.statuses = append(m.statuses, status)
	m.failure = errorMessage
	return nil
}

func (m *mockTalkScriptRepo) SaveGeneration(ctx context.Context, id uuid.UUID, gen *models.ScriptGeneration) error {
	m.saved = gen
	return nil
}

func (m *mockTalkScriptRepo) ReplaceProductLinks(ctx context.Context, scriptID uuid.UUID, links []*models.ProposalProductLink) error {
	m.links = links
	return nil
}

// mockCompanyRepo serves a single company.
type mockCompanyRepo struct {
	repositories.CompanyRepository
	company  *models.Company
	statuses []string
	failure  string
	updated  *models.Company
}

func (m *mockCompanyRepo) SetStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	m.statuses = append(m.statuses, status)
	m.failure = errorMessage
	return nil
}

func (m *mockCompanyRepo) Update(ctx context.Context, c *models.Company) error {
	copied := *c
	m.updated = &copied
	return nil
}

func (m *mockCompanyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	if m.company == nil || m.company.ID != id {
		return nil, apperrors.ErrNotFound
	}
	return m.company, nil
}

type talkScriptFixture struct {
	svc      TalkScriptService
	repo     *mockTalkScriptRepo
	settings *mockSettingsService
	queue    *mockEnqueuer
	company  *models.Company
}

func newTalkScriptFixture() *talkScriptFixture {
	f := &talkScriptFixture{
		repo:     newMockTalkScriptRepo(),
		settings: newMockSettings(),
		queue:    &mockEnqueuer{},
		company:  &models.Company{ID: uuid.New(), Domain: "acme.example", CompanyName: "Acme"},
	}
	newTask := func(script *models.TalkScript) workqueue.Task {
		return NewTalkScriptTask(TalkScriptTaskDeps{Repo: f.repo, TaskCtx: passthroughTaskCtx, Logger: zap.NewNop()}, script)
	}
	f.svc = NewTalkScriptService(f.repo, &mockCompanyRepo{company: f.company}, nil, &mockTemplateRepo{},
		f.settings, f.queue, newTask, zap.NewNop())
	return f
}

func TestTalkScriptService_Generate(t *testing.T) {
	ctx, userID := userCtx(auth.RoleSalesRep)

	t.Run("queues a pending draft", func(t *testing.T) {
		f := newTalkScriptFixture()

		script, err := f.svc.Generate(ctx, &GenerateScriptRequest{
			CompanyID: f.company.ID,
			Sections:  []string{"closing", "opening"},
		})

		require.NoError(t, err)
		assert.Equal(t, "Acme", script.CompanyName)
		assert.Equal(t, models.ScriptStatusDraft, script.Status)
		assert.Equal(t, models.StatusPending, script.GenerationStatus)
		assert.Equal(t, []string{"opening", "closing"}, script.SelectedSections)
		assert.Equal(t, &userID, script.CreatedBy)
		assert.Equal(t, 1, f.queue.count())
	})

	t.Run("rejects unknown sections", func(t *testing.T) {
		f := newTalkScriptFixture()
		_, err := f.svc.Generate(ctx, &GenerateScriptRequest{CompanyID: f.company.ID, Sections: []string{"small_talk"}})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Zero(t, f.queue.count())
	})

	t.Run("refuses while AI is disabled", func(t *testing.T) {
		f := newTalkScriptFixture()
		f.settings.enabled = false
		_, err := f.svc.Generate(ctx, &GenerateScriptRequest{CompanyID: f.company.ID})
		assert.ErrorIs(t, err, apperrors.ErrAIDisabled)
	})

	t.Run("unknown company", func(t *testing.T) {
		f := newTalkScriptFixture()
		_, err := f.svc.Generate(ctx, &GenerateScriptRequest{CompanyID: uuid.New()})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestTalkScriptService_Visibility(t *testing.T) {
	f := newTalkScriptFixture()
	ownerCtx, _ := userCtx(auth.RoleSalesRep)
	script, err := f.svc.Generate(ownerCtx, &GenerateScriptRequest{CompanyID: f.company.ID})
	require.NoError(t, err)

	otherRep, _ := userCtx(auth.RoleSalesRep)
	_, err = f.svc.Get(otherRep, script.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	manager, _ := userCtx(auth.RoleSalesManager)
	got, err := f.svc.Get(manager, script.ID)
	require.NoError(t, err)
	assert.Equal(t, script.ID, got.ID)
}

func TestTalkScriptService_RegenerateKeepsSelection(t *testing.T) {
	f := newTalkScriptFixture()
	ctx, _ := userCtx(auth.RoleSalesRep)
	script, err := f.svc.Generate(ctx, &GenerateScriptRequest{CompanyID: f.company.ID, Sections: []string{"objection_handling"}})
	require.NoError(t, err)
	script.GenerationStatus = models.StatusCompleted

	again, err := f.svc.Regenerate(ctx, script.ID, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, again.Version)
	assert.Equal(t, []string{"objection_handling"}, again.SelectedSections)
	assert.Equal(t, 2, f.queue.count())

	again.GenerationStatus = models.StatusProcessing
	_, err = f.svc.Regenerate(ctx, script.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessing)
}

func TestTalkScriptService_Update(t *testing.T) {
	f := newTalkScriptFixture()
	ctx, _ := userCtx(auth.RoleSalesRep)
	script, err := f.svc.Generate(ctx, &GenerateScriptRequest{CompanyID: f.company.ID})
	require.NoError(t, err)

	t.Run("blocked while generating", func(t *testing.T) {
		script.GenerationStatus = models.StatusProcessing
		_, err := f.svc.Update(ctx, script.ID, &UpdateScriptRequest{Status: models.ScriptStatusActive})
		assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessing)
	})

	script.GenerationStatus = models.StatusCompleted

	t.Run("normalizes section aliases", func(t *testing.T) {
		got, err := f.svc.Update(ctx, script.ID, &UpdateScriptRequest{
			Status:         models.ScriptStatusActive,
			ScriptSections: map[string]string{"proposal": "Our offer"},
		})
		require.NoError(t, err)
		assert.Equal(t, models.ScriptStatusActive, got.Status)
		assert.Equal(t, "Our offer", got.ScriptSections["solution_proposal"])
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := f.svc.Update(ctx, script.ID, &UpdateScriptRequest{Status: "published"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}
