package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

// PromptTemplateRequest holds the editable fields of a template.
type PromptTemplateRequest struct {
	Name                string               `json:"name"`
	TemplateType        prompts.TemplateType `json:"template_type"`
	Description         string               `json:"description"`
	SystemPrompt        string               `json:"system_prompt"`
	UserPromptTemplate  string               `json:"user_prompt_template"`
	ModelOverride       *string              `json:"model_override"`
	TemperatureOverride *float64             `json:"temperature_override"`
	IsActive            *bool                `json:"is_active"`
	ChangeSummary       string               `json:"change_summary"`
}

// PromptTemplateService manages prompt templates and resolves them for LLM calls.
type PromptTemplateService interface {
	List(ctx context.Context, filter models.PromptTemplateFilter) ([]*models.PromptTemplate, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PromptTemplate, error)
	Create(ctx context.Context, req *PromptTemplateRequest) (*models.PromptTemplate, error)
	// Update bumps the version only when prompt content or overrides change.
	Update(ctx context.Context, id uuid.UUID, req *PromptTemplateRequest) (*models.PromptTemplate, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListVersions(ctx context.Context, id uuid.UUID) ([]*models.PromptVersion, error)
	// RestoreVersion copies an old version forward as a new version.
	RestoreVersion(ctx context.Context, id uuid.UUID, version int) (*models.PromptTemplate, error)
	SetDefault(ctx context.Context, id uuid.UUID) (*models.PromptTemplate, error)
	Preview(ctx context.Context, id uuid.UUID, vars prompts.Vars) (*models.PromptPreview, error)
	// Seed inserts the built-in templates that are missing by name. Returns the number inserted.
	Seed(ctx context.Context) (int, error)
	// Resolve picks the template for t and renders it with vars. taskTemperature,
	// when non-nil, is used if the template carries no temperature override.
	Resolve(ctx context.Context, t prompts.TemplateType, vars prompts.Vars, taskTemperature *float64) (*models.ResolvedPrompt, error)
	// ResolveTemplate renders one stored template with the same model and temperature rules.
	ResolveTemplate(ctx context.Context, tmpl *models.PromptTemplate, vars prompts.Vars, taskTemperature *float64) (*models.ResolvedPrompt, error)
}

type promptTemplateService struct {
	repo     repositories.PromptTemplateRepository
	settings SettingsService
	logger   *zap.Logger
}

// NewPromptTemplateService creates a PromptTemplateService.
func NewPromptTemplateService(repo repositories.PromptTemplateRepository, settings SettingsService, logger *zap.Logger) PromptTemplateService {
	return &promptTemplateService{
		repo:     repo,
		settings: settings,
		logger:   logger.Named("prompt-templates"),
	}
}

var _ PromptTemplateService = (*promptTemplateService)(nil)

func validateOverrides(model *string, temperature *float64) error {
	if temperature != nil && (*temperature < 0 || *temperature > 2) {
		return fmt.Errorf("%w: temperature_override must be between 0 and 2", apperrors.ErrInvalidInput)
	}
	if model != nil && strings.TrimSpace(*model) == "" {
		return fmt.Errorf("%w: model_override must not be blank", apperrors.ErrInvalidInput)
	}
	return nil
}

func (s *promptTemplateService) List(ctx context.Context, filter models.PromptTemplateFilter) ([]*models.PromptTemplate, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown template type %q", apperrors.ErrInvalidInput, filter.Type)
	}
	return s.repo.List(ctx, filter)
}

func (s *promptTemplateService) Get(ctx context.Context, id uuid.UUID) (*models.PromptTemplate, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *promptTemplateService) Create(ctx context.Context, req *PromptTemplateRequest) (*models.PromptTemplate, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrInvalidInput)
	}
	if !req.TemplateType.Valid() {
		return nil, fmt.Errorf("%w: unknown template type %q", apperrors.ErrInvalidInput, req.TemplateType)
	}
	if strings.TrimSpace(req.UserPromptTemplate) == "" {
		return nil, fmt.Errorf("%w: user_prompt_template is required", apperrors.ErrInvalidInput)
	}
	if err := validateOverrides(req.ModelOverride, req.TemperatureOverride); err != nil {
		return nil, err
	}

	t := &models.PromptTemplate{
		Name:                strings.TrimSpace(req.Name),
		TemplateType:        req.TemplateType,
		Description:         req.Description,
		SystemPrompt:        req.SystemPrompt,
		UserPromptTemplate:  req.UserPromptTemplate,
		ModelOverride:       req.ModelOverride,
		TemperatureOverride: req.TemperatureOverride,
		IsActive:            req.IsActive == nil || *req.IsActive,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("Prompt template created",
		zap.String("template_id", t.ID.String()),
		zap.String("type", string(t.TemplateType)))
	return t, nil
}

func (s *promptTemplateService) Update(ctx context.Context, id uuid.UUID, req *PromptTemplateRequest) (*models.PromptTemplate, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateOverrides(req.ModelOverride, req.TemperatureOverride); err != nil {
		return nil, err
	}
	if req.TemplateType != "" && req.TemplateType != t.TemplateType {
		if !req.TemplateType.Valid() {
			return nil, fmt.Errorf("%w: unknown template type %q", apperrors.ErrInvalidInput, req.TemplateType)
		}
		t.TemplateType = req.TemplateType
		// A default does not follow the template into another type.
		t.IsDefault = false
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		t.Name = name
	}
	if req.Description != "" {
		t.Description = req.Description
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	before := t.Snapshot("")
	if req.SystemPrompt != "" {
		t.SystemPrompt = req.SystemPrompt
	}
	if req.UserPromptTemplate != "" {
		t.UserPromptTemplate = req.UserPromptTemplate
	}
	t.ModelOverride = req.ModelOverride
	t.TemperatureOverride = req.TemperatureOverride

	bump := contentChanged(before, t)
	summary := req.ChangeSummary
	if bump && summary == "" {
		summary = fmt.Sprintf("Updated to version %d", t.Version+1)
	}
	if err := s.repo.Update(ctx, t, bump, summary); err != nil {
		return nil, err
	}

	s.logger.Info("Prompt template updated",
		zap.String("template_id", t.ID.String()),
		zap.Int("version", t.Version),
		zap.Bool("new_version", bump))
	return t, nil
}

func contentChanged(before *models.PromptVersion, t *models.PromptTemplate) bool {
	return before.SystemPrompt != t.SystemPrompt ||
		before.UserPromptTemplate != t.UserPromptTemplate ||
		!equalPtr(before.ModelOverride, t.ModelOverride) ||
		!equalPtr(before.TemperatureOverride, t.TemperatureOverride)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *promptTemplateService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *promptTemplateService) ListVersions(ctx context.Context, id uuid.UUID) ([]*models.PromptVersion, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, id)
}

func (s *promptTemplateService) RestoreVersion(ctx context.Context, id uuid.UUID, version int) (*models.PromptTemplate, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.repo.GetVersion(ctx, id, version)
	if err != nil {
		return nil, err
	}

	t.SystemPrompt = v.SystemPrompt
	t.UserPromptTemplate = v.UserPromptTemplate
	t.ModelOverride = v.ModelOverride
	t.TemperatureOverride = v.TemperatureOverride
	if err := s.repo.Update(ctx, t, true, fmt.Sprintf("Restored from version %d", version)); err != nil {
		return nil, err
	}

	s.logger.Info("Prompt template version restored",
		zap.String("template_id", id.String()),
		zap.Int("from_version", version),
		zap.Int("version", t.Version))
	return t, nil
}

func (s *promptTemplateService) SetDefault(ctx context.Context, id uuid.UUID) (*models.PromptTemplate, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, fmt.Errorf("%w: an inactive template cannot be the default", apperrors.ErrInvalidInput)
	}
	if err := s.repo.SetDefault(ctx, id); err != nil {
		return nil, err
	}
	t.IsDefault = true
	return t, nil
}

func (s *promptTemplateService) Preview(ctx context.Context, id uuid.UUID, vars prompts.Vars) (*models.PromptPreview, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return previewTemplate(t.SystemPrompt, t.UserPromptTemplate, vars), nil
}

func previewTemplate(system, user string, vars prompts.Vars) *models.PromptPreview {
	combined := system + "\n" + user
	missing := prompts.Missing(combined, vars)
	if missing == nil {
		missing = []string{}
	}
	return &models.PromptPreview{
		SystemPrompt:     prompts.Render(system, vars),
		UserPrompt:       prompts.Render(user, vars),
		Variables:        prompts.Variables(combined),
		MissingVariables: missing,
	}
}

func (s *promptTemplateService) Seed(ctx context.Context) (int, error) {
	defaults, err := prompts.Defaults()
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, d := range defaults {
		_, err := s.repo.GetByName(ctx, d.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return inserted, err
		}

		t := &models.PromptTemplate{
			Name:               d.Name,
			TemplateType:       d.Type,
			Description:        d.Description,
			SystemPrompt:       d.SystemPrompt,
			UserPromptTemplate: d.UserPromptTemplate,
			IsActive:           true,
		}
		if err := s.repo.Create(ctx, t); err != nil {
			return inserted, fmt.Errorf("seed %q: %w", d.Name, err)
		}
		if err := s.repo.SetDefault(ctx, t.ID); err != nil {
			return inserted, fmt.Errorf("seed %q: %w", d.Name, err)
		}
		inserted++
	}

	if inserted > 0 {
		s.logger.Info("Seeded prompt templates", zap.Int("count", inserted))
	}
	return inserted, nil
}

func (s *promptTemplateService) baseResolution(ctx context.Context, taskTemperature *float64) (*models.ResolvedPrompt, error) {
	ai, err := s.settings.AISettings(ctx)
	if err != nil {
		return nil, err
	}
	resolved := &models.ResolvedPrompt{
		Model:       ai.Model,
		Temperature: ai.Temperature,
		MaxTokens:   ai.MaxTokens,
	}
	if taskTemperature != nil {
		resolved.Temperature = *taskTemperature
	}
	return resolved, nil
}

func applyStored(resolved *models.ResolvedPrompt, tmpl *models.PromptTemplate, vars prompts.Vars) {
	resolved.TemplateID = &tmpl.ID
	resolved.Source = models.PromptSourceLatest
	if tmpl.IsDefault {
		resolved.Source = models.PromptSourceDefault
	}
	resolved.System = prompts.Render(tmpl.SystemPrompt, vars)
	resolved.User = prompts.Render(tmpl.UserPromptTemplate, vars)
	if tmpl.ModelOverride != nil {
		resolved.Model = *tmpl.ModelOverride
	}
	if tmpl.TemperatureOverride != nil {
		resolved.Temperature = *tmpl.TemperatureOverride
	}
}

func (s *promptTemplateService) ResolveTemplate(ctx context.Context, tmpl *models.PromptTemplate, vars prompts.Vars, taskTemperature *float64) (*models.ResolvedPrompt, error) {
	resolved, err := s.baseResolution(ctx, taskTemperature)
	if err != nil {
		return nil, err
	}
	applyStored(resolved, tmpl, vars)
	return resolved, nil
}

func (s *promptTemplateService) Resolve(ctx context.Context, t prompts.TemplateType, vars prompts.Vars, taskTemperature *float64) (*models.ResolvedPrompt, error) {
	resolved, err := s.baseResolution(ctx, taskTemperature)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.FindForType(ctx, t)
	switch {
	case err == nil:
		applyStored(resolved, stored, vars)
	case errors.Is(err, apperrors.ErrNotFound):
		builtin, ok := prompts.Builtin(t)
		if !ok {
			return nil, fmt.Errorf("%w: no prompt template for type %q", apperrors.ErrNotFound, t)
		}
		resolved.Source = models.PromptSourceBuiltin
		resolved.System = prompts.Render(builtin.SystemPrompt, vars)
		resolved.User = prompts.Render(builtin.UserPromptTemplate, vars)
		if taskTemperature == nil && builtin.Temperature != nil {
			resolved.Temperature = *builtin.Temperature
		}
	default:
		return nil, err
	}

	s.logger.Debug("Resolved prompt",
		zap.String("type", string(t)),
		zap.String("source", resolved.Source),
		zap.String("model", resolved.Model),
		zap.Float64("temperature", resolved.Temperature))
	return resolved, nil
}
