package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

// mockScopes hands back the caller's context as the scoped one.
type mockScopes struct {
	opened int
}

func (m *mockScopes) WithScope(ctx context.Context, _ uuid.UUID) (context.Context, func(), error) {
	m.opened++
	return ctx, func() {}, nil
}

// mockSettingsService serves fixed settings.
type mockSettingsService struct {
	settings  *models.SystemSettings
	ai        *AISettings
	enabled   bool
	updateErr error
}

func newMockSettings() *mockSettingsService {
	return &mockSettingsService{
		settings: models.DefaultSystemSettings(),
		ai:       &AISettings{Model: "gpt-4o", Temperature: 0.7, MaxTokens: 4000},
		enabled:  true,
	}
}

func (m *mockSettingsService) ResolveLLMConfig(ctx context.Context) (*llm.ProviderConfig, error) {
	return &llm.ProviderConfig{Model: m.ai.Model}, nil
}

func (m *mockSettingsService) MaintenanceStatus(ctx context.Context) (bool, string) {
	return m.settings.MaintenanceMode, m.settings.MaintenanceMessage
}

func (m *mockSettingsService) Get(ctx context.Context) (*models.SystemSettings, error) {
	return m.settings, nil
}

func (m *mockSettingsService) Public(ctx context.Context) (*models.PublicSettings, error) {
	return &models.PublicSettings{}, nil
}

func (m *mockSettingsService) Update(ctx context.Context, upd *models.SettingsUpdate) (*models.SystemSettings, error) {
	return m.settings, m.updateErr
}

func (m *mockSettingsService) AISettings(ctx context.Context) (*AISettings, error) {
	return m.ai, nil
}

func (m *mockSettingsService) AIEnabled(ctx context.Context) bool {
	return m.enabled
}

func (m *mockSettingsService) TestAIConnection(ctx context.Context) (*AITestResult, error) {
	return &AITestResult{}, nil
}

func (m *mockSettingsService) Effective(ctx context.Context) (*models.SystemSettings, error) {
	return m.settings, nil
}

var _ SettingsService = (*mockSettingsService)(nil)

// mockTemplateRepo stores templates in memory.
type mockTemplateRepo struct {
	byID        map[uuid.UUID]*models.PromptTemplate
	versions    map[uuid.UUID][]*models.PromptVersion
	bumps       []string
	defaultedID uuid.UUID
}

func newMockTemplateRepo(templates ...*models.PromptTemplate) *mockTemplateRepo {
	m := &mockTemplateRepo{
		byID:     make(map[uuid.UUID]*models.PromptTemplate),
		versions: make(map[uuid.UUID][]*models.PromptVersion),
	}
	for _, t := range templates {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		if t.Version == 0 {
			t.Version = 1
		}
		m.byID[t.ID] = t
	}
	return m
}

func (m *mockTemplateRepo) Create(ctx context.Context, t *models.PromptTemplate) error {
	for _, existing := range m.byID {
		if existing.Name == t.Name {
			return apperrors.ErrConflict
		}
	}
	t.ID = uuid.New()
	t.Version = 1
	m.byID[t.ID] = t
	return nil
}

func (m *mockTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PromptTemplate, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *mockTemplateRepo) GetByName(ctx context.Context, name string) (*models.PromptTemplate, error) {
	for _, t := range m.byID {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockTemplateRepo) List(ctx context.Context, filter models.PromptTemplateFilter) ([]*models.PromptTemplate, error) {
	out := make([]*models.PromptTemplate, 0, len(m.byID))
	for _, t := range m.byID {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTemplateRepo) Update(ctx context.Context, t *models.PromptTemplate, bumpVersion bool, changeSummary string) error {
	if bumpVersion {
		t.Version++
		m.bumps = append(m.bumps, changeSummary)
		m.versions[t.ID] = append(m.versions[t.ID], &models.PromptVersion{
			TemplateID:         t.ID,
			Version:            t.Version,
			SystemPrompt:       t.SystemPrompt,
			UserPromptTemplate: t.UserPromptTemplate,
			ChangeSummary:      changeSummary,
		})
	}
	copied := *t
	m.byID[t.ID] = &copied
	return nil
}

func (m *mockTemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.byID, id)
	return nil
}

func (m *mockTemplateRepo) ListVersions(ctx context.Context, templateID uuid.UUID) ([]*models.PromptVersion, error) {
	return m.versions[templateID], nil
}

func (m *mockTemplateRepo) GetVersion(ctx context.Context, templateID uuid.UUID, version int) (*models.PromptVersion, error) {
	for _, v := range m.versions[templateID] {
		if v.Version == version {
			return v, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockTemplateRepo) SetDefault(ctx context.Context, id uuid.UUID) error {
	t, ok := m.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	for _, other := range m.byID {
		if other.TemplateType == t.TemplateType {
			other.IsDefault = false
		}
	}
	t.IsDefault = true
	m.defaultedID = id
	return nil
}

func (m *mockTemplateRepo) FindForType(ctx context.Context, tt prompts.TemplateType) (*models.PromptTemplate, error) {
	var newest *models.PromptTemplate
	for _, t := range m.byID {
		if t.TemplateType != tt || !t.IsActive {
			continue
		}
		if t.IsDefault {
			return t, nil
		}
		if newest == nil || t.UpdatedAt.After(newest.UpdatedAt) {
			newest = t
		}
	}
	if newest == nil {
		return nil, apperrors.ErrNotFound
	}
	return newest, nil
}

// mockProductRepo serves a fixed, priority-ordered catalogue.
type mockProductRepo struct {
	products []*models.Product
	listErr  error
}

func (m *mockProductRepo) CreateCategory(ctx context.Context, c *models.ProductCategory) error {
	return nil
}

func (m *mockProductRepo) GetCategory(ctx context.Context, id uuid.UUID) (*models.ProductCategory, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockProductRepo) ListCategories(ctx context.Context) ([]*models.ProductCategory, error) {
	return nil, nil
}

func (m *mockProductRepo) UpdateCategory(ctx context.Context, c *models.ProductCategory) error {
	return nil
}

func (m *mockProductRepo) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (m *mockProductRepo) Create(ctx context.Context, p *models.Product) error {
	p.ID = uuid.New()
	m.products = append(m.products, p)
	return nil
}

func (m *mockProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Product, error) {
	out := make([]*models.Product, 0, len(ids))
	for _, id := range ids {
		if p, err := m.GetByID(ctx, id); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*models.Product, 0, len(m.products))
	for _, p := range m.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProductRepo) Update(ctx context.Context, p *models.Product) error {
	return nil
}

func (m *mockProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

// mockOutcomeRepo returns canned training outcomes per outcome value.
type mockOutcomeRepo struct {
	training map[string][]*models.SalesOutcome
	limits   map[string]int
}

func (m *mockOutcomeRepo) Create(ctx context.Context, o *models.SalesOutcome) error {
	o.ID = uuid.New()
	return nil
}

func (m *mockOutcomeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SalesOutcome, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockOutcomeRepo) List(ctx context.Context, filter models.SalesOutcomeFilter) ([]*models.SalesOutcome, error) {
	return nil, nil
}

func (m *mockOutcomeRepo) Update(ctx context.Context, o *models.SalesOutcome) error {
	return nil
}

func (m *mockOutcomeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (m *mockOutcomeRepo) ListTrainingOutcomes(ctx context.Context, industry, outcome string, limit int) ([]*models.SalesOutcome, error) {
	if m.limits == nil {
		m.limits = make(map[string]int)
	}
	m.limits[outcome] = limit
	out := m.training[outcome]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockOutcomeRepo) Stats(ctx context.Context, filter models.SalesOutcomeFilter) (*models.OutcomeStats, error) {
	return &models.OutcomeStats{}, nil
}

// mockUserRepo stores users in memory.
type mockUserRepo struct {
	users      map[uuid.UUID]*models.User
	adminCount int
	loginIPs   map[uuid.UUID]string
	passwords  map[uuid.UUID]string
	deletedIDs []uuid.UUID
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	m := &mockUserRepo{
		users:     make(map[uuid.UUID]*models.User),
		loginIPs:  make(map[uuid.UUID]string),
		passwords: make(map[uuid.UUID]string),
	}
	for _, u := range users {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Username == user.Username {
			return apperrors.ErrConflict
		}
	}
	user.ID = uuid.New()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepo) List(ctx context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	m.passwords[id] = passwordHash
	return nil
}

func (m *mockUserRepo) RecordLogin(ctx context.Context, id uuid.UUID, ip string) error {
	m.loginIPs[id] = ip
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.deletedIDs = append(m.deletedIDs, id)
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) CountActiveAdmins(ctx context.Context) (int, error) {
	return m.adminCount, nil
}

// mockEnqueuer records enqueued tasks without running them.
type mockEnqueuer struct {
	mu    sync.Mutex
	tasks []workqueue.Task
}

func (m *mockEnqueuer) Enqueue(task workqueue.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

func (m *mockEnqueuer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// mockRuntime records progress reports.
type mockRuntime struct {
	progress []int
	messages []string
}

func (r *mockRuntime) Enqueue(task workqueue.Task) {}

func (r *mockRuntime) ReportProgress(percent int, message string) {
	r.progress = append(r.progress, percent)
	r.messages = append(r.messages, message)
}

func (r *mockRuntime) Attempt() int { return 1 }

// passthroughTaskCtx is a TaskContextFunc that opens no scope.
func passthroughTaskCtx(ctx context.Context, _ workqueue.ResourceRef) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

var testNow = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
