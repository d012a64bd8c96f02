package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

// GenerateScriptRequest asks for a talk-script for one company.
type GenerateScriptRequest struct {
	CompanyID  uuid.UUID   `json:"company_id"`
	AnalysisID *uuid.UUID  `json:"analysis_id"`
	TemplateID *uuid.UUID  `json:"template_id"`
	Sections   []string    `json:"sections"`
	ProductIDs []uuid.UUID `json:"product_ids"`
}

// UpdateScriptRequest edits section text and lifecycle status.
type UpdateScriptRequest struct {
	ScriptSections map[string]string `json:"script_sections"`
	Status         string            `json:"status"`
}

// TalkScriptService manages talk-scripts and queues their generation.
type TalkScriptService interface {
	// Generate stores a pending script and queues the generation pipeline.
	Generate(ctx context.Context, req *GenerateScriptRequest) (*models.TalkScript, error)
	// Regenerate bumps the version and re-runs generation. Fails with
	// apperrors.ErrAlreadyProcessing while a run is in progress or was just queued.
	Regenerate(ctx context.Context, id uuid.UUID, sections []string) (*models.TalkScript, error)
	Get(ctx context.Context, id uuid.UUID) (*models.TalkScript, error)
	List(ctx context.Context, filter models.TalkScriptFilter) ([]*models.TalkScript, int, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateScriptRequest) (*models.TalkScript, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ScriptTaskFactory builds the generation task of a script.
type ScriptTaskFactory func(script *models.TalkScript) workqueue.Task

type talkScriptService struct {
	repo         repositories.TalkScriptRepository
	companyRepo  repositories.CompanyRepository
	csvRepo      repositories.CSVRepository
	templateRepo repositories.PromptTemplateRepository
	settings     SettingsService
	tasks        workqueue.TaskEnqueuer
	newTask      ScriptTaskFactory
	logger       *zap.Logger
}

// NewTalkScriptService creates a TalkScriptService.
func NewTalkScriptService(
	repo repositories.TalkScriptRepository,
	companyRepo repositories.CompanyRepository,
	csvRepo repositories.CSVRepository,
	templateRepo repositories.PromptTemplateRepository,
	settings SettingsService,
	tasks workqueue.TaskEnqueuer,
	newTask ScriptTaskFactory,
	logger *zap.Logger,
) TalkScriptService {
	return &talkScriptService{
		repo:         repo,
		companyRepo:  companyRepo,
		csvRepo:      csvRepo,
		templateRepo: templateRepo,
		settings:     settings,
		tasks:        tasks,
		newTask:      newTask,
		logger:       logger.Named("talk-scripts"),
	}
}

var _ TalkScriptService = (*talkScriptService)(nil)

func normalizeSections(selected []string) ([]string, error) {
	sections, err := prompts.NormalizeSections(selected)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, err.Error())
	}
	return sections, nil
}

func (s *talkScriptService) Generate(ctx context.Context, req *GenerateScriptRequest) (*models.TalkScript, error) {
	sections, err := normalizeSections(req.Sections)
	if err != nil {
		return nil, err
	}
	if !s.settings.AIEnabled(ctx) {
		return nil, apperrors.ErrAIDisabled
	}

	company, err := s.companyRepo.GetByID(ctx, req.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("company: %w", err)
	}
	if req.AnalysisID != nil {
		a, err := s.csvRepo.GetAnalysis(ctx, *req.AnalysisID)
		if err != nil {
			return nil, fmt.Errorf("analysis: %w", err)
		}
		if err := checkOwner(ctx, a.CreatedBy); err != nil {
			return nil, fmt.Errorf("analysis: %w", err)
		}
	}
	if req.TemplateID != nil {
		if _, err := s.templateRepo.GetByID(ctx, *req.TemplateID); err != nil {
			return nil, fmt.Errorf("template: %w", err)
		}
	}

	script := &models.TalkScript{
		CompanyID:        company.ID,
		CompanyName:      company.DisplayName(),
		AnalysisID:       req.AnalysisID,
		TemplateID:       req.TemplateID,
		ScriptSections:   map[string]string{},
		SelectedSections: sections,
		PinnedProductIDs: req.ProductIDs,
		Status:           models.ScriptStatusDraft,
		GenerationStatus: models.StatusPending,
	}
	if err := s.repo.Create(ctx, script); err != nil {
		return nil, err
	}

	s.logger.Info("Talk-script generation queued",
		zap.String("script_id", script.ID.String()),
		zap.String("company_id", company.ID.String()),
		zap.Strings("sections", sections))
	s.tasks.Enqueue(s.newTask(script))
	return script, nil
}

func (s *talkScriptService) Regenerate(ctx context.Context, id uuid.UUID, sections []string) (*models.TalkScript, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		sections = existing.SelectedSections
	}
	normalized, err := normalizeSections(sections)
	if err != nil {
		return nil, err
	}
	if !s.settings.AIEnabled(ctx) {
		return nil, apperrors.ErrAIDisabled
	}

	script, err := s.repo.MarkRegenerating(ctx, id, normalized)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Talk-script regeneration queued",
		zap.String("script_id", id.String()),
		zap.Int("version", script.Version))
	s.tasks.Enqueue(s.newTask(script))
	return script, nil
}

func (s *talkScriptService) Get(ctx context.Context, id uuid.UUID) (*models.TalkScript, error) {
	script, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(ctx, script.CreatedBy); err != nil {
		return nil, err
	}
	return script, nil
}

func (s *talkScriptService) List(ctx context.Context, filter models.TalkScriptFilter) ([]*models.TalkScript, int, error) {
	if owner := visibleOwner(ctx); owner != nil {
		filter.CreatedBy = owner
	}
	if filter.Status != "" && !models.IsValidScriptStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidInput, filter.Status)
	}
	return s.repo.List(ctx, filter)
}

func (s *talkScriptService) Update(ctx context.Context, id uuid.UUID, req *UpdateScriptRequest) (*models.TalkScript, error) {
	script, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if script.GenerationStatus == models.StatusProcessing {
		return nil, apperrors.ErrAlreadyProcessing
	}

	if req.Status != "" {
		if !models.IsValidScriptStatus(req.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidInput, req.Status)
		}
		script.Status = req.Status
	}
	for name, text := range req.ScriptSections {
		section, ok := prompts.NormalizeSection(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown section %q", apperrors.ErrInvalidInput, name)
		}
		if script.ScriptSections == nil {
			script.ScriptSections = map[string]string{}
		}
		script.ScriptSections[section] = text
	}

	if err := s.repo.UpdateContent(ctx, script); err != nil {
		return nil, err
	}
	return script, nil
}

func (s *talkScriptService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
