package services

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

// ExportService exports talk-scripts to files.
type ExportService interface {
	// Create records a pending export and queues the render task.
	Create(ctx context.Context, scriptID uuid.UUID, exportType string) (*models.ExportHistory, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ExportHistory, error)
	List(ctx context.Context) ([]*models.ExportHistory, error)
	// Open returns a completed export and its file. The caller closes the file.
	Open(ctx context.Context, id uuid.UUID) (*models.ExportHistory, *os.File, error)
}

// ExportTaskFactory builds the render task of an export.
type ExportTaskFactory func(e *models.ExportHistory, owner *uuid.UUID) workqueue.Task

type exportService struct {
	repo       repositories.ExportRepository
	scriptRepo repositories.TalkScriptRepository
	tasks      workqueue.TaskEnqueuer
	newTask    ExportTaskFactory
	logger     *zap.Logger
}

// NewExportService creates an ExportService.
func NewExportService(
	repo repositories.ExportRepository,
	scriptRepo repositories.TalkScriptRepository,
	tasks workqueue.TaskEnqueuer,
	newTask ExportTaskFactory,
	logger *zap.Logger,
) ExportService {
	return &exportService{
		repo:       repo,
		scriptRepo: scriptRepo,
		tasks:      tasks,
		newTask:    newTask,
		logger:     logger.Named("exports"),
	}
}

var _ ExportService = (*exportService)(nil)

func (s *exportService) Create(ctx context.Context, scriptID uuid.UUID, exportType string) (*models.ExportHistory, error) {
	if exportType == "" {
		exportType = models.ExportPPTX
	}
	switch exportType {
	case models.ExportPPTX:
	case models.ExportPDF, models.ExportDOCX:
		return nil, fmt.Errorf("%w: %s export is not supported", apperrors.ErrInvalidInput, exportType)
	default:
		return nil, fmt.Errorf("%w: unknown export type %q", apperrors.ErrInvalidInput, exportType)
	}

	script, err := s.scriptRepo.GetByID(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(ctx, script.CreatedBy); err != nil {
		return nil, err
	}
	if script.GenerationStatus != models.StatusCompleted {
		return nil, fmt.Errorf("%w: talk-script generation is %s", apperrors.ErrNotReady, script.GenerationStatus)
	}

	export := &models.ExportHistory{
		TalkScriptID: script.ID,
		ExportType:   exportType,
		Status:       models.StatusPending,
	}
	if err := s.repo.Create(ctx, export); err != nil {
		return nil, err
	}

	s.logger.Info("Export queued",
		zap.String("export_id", export.ID.String()),
		zap.String("script_id", script.ID.String()),
		zap.String("type", exportType))
	s.tasks.Enqueue(s.newTask(export, ownerFromContext(ctx)))
	return export, nil
}

func (s *exportService) Get(ctx context.Context, id uuid.UUID) (*models.ExportHistory, error) {
	export, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(ctx, export.CreatedBy); err != nil {
		return nil, err
	}
	return export, nil
}

func (s *exportService) List(ctx context.Context) ([]*models.ExportHistory, error) {
	return s.repo.List(ctx, visibleOwner(ctx))
}

func (s *exportService) Open(ctx context.Context, id uuid.UUID) (*models.ExportHistory, *os.File, error) {
	export, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if export.Status != models.StatusCompleted {
		return nil, nil, fmt.Errorf("%w: export is %s", apperrors.ErrNotReady, export.Status)
	}
	f, err := os.Open(export.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Export file missing",
				zap.String("export_id", id.String()),
				zap.String("path", export.FilePath))
			return nil, nil, fmt.Errorf("export file: %w", apperrors.ErrNotFound)
		}
		return nil, nil, err
	}
	return export, f, nil
}
