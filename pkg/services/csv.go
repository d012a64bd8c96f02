package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

// CSVRetention is how long uploads are kept before cleanup deletes them.
const CSVRetention = 90 * 24 * time.Hour

var unsafeFileChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// CSVService stores CSV uploads and runs AI analyses over them.
type CSVService interface {
	// Upload validates, decodes and profiles a CSV file, then stores it.
	Upload(ctx context.Context, fileName string, data []byte) (*models.CSVUpload, error)
	ListUploads(ctx context.Context) ([]*models.CSVUpload, error)
	GetUpload(ctx context.Context, id uuid.UUID) (*models.CSVUpload, error)
	DeleteUpload(ctx context.Context, id uuid.UUID) error

	// CreateAnalysis records a pending analysis and queues it.
	CreateAnalysis(ctx context.Context, uploadID uuid.UUID, customPrompt string) (*models.Analysis, error)
	GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, uploadID *uuid.UUID) ([]*models.Analysis, error)

	// Cleanup deletes uploads, and their files, older than cutoff.
	Cleanup(ctx context.Context, cutoff time.Time) (int, error)
}

// AnalysisTaskFactory builds the task that runs an analysis.
type AnalysisTaskFactory func(a *models.Analysis, upload *models.CSVUpload) workqueue.Task

type csvService struct {
	repo      repositories.CSVRepository
	settings  SettingsService
	tasks     workqueue.TaskEnqueuer
	newTask   AnalysisTaskFactory
	uploadDir string
	now       func() time.Time
	logger    *zap.Logger
}

// NewCSVService creates a CSVService storing files under uploadDir.
func NewCSVService(
	repo repositories.CSVRepository,
	settings SettingsService,
	tasks workqueue.TaskEnqueuer,
	newTask AnalysisTaskFactory,
	uploadDir string,
	logger *zap.Logger,
) CSVService {
	return &csvService{
		repo:      repo,
		settings:  settings,
		tasks:     tasks,
		newTask:   newTask,
		uploadDir: uploadDir,
		now:       time.Now,
		logger:    logger.Named("csv"),
	}
}

var _ CSVService = (*csvService)(nil)

func (s *csvService) Upload(ctx context.Context, fileName string, data []byte) (*models.CSVUpload, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return nil, fmt.Errorf("%w: only .csv files are accepted", apperrors.ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", apperrors.ErrInvalidInput)
	}

	settings, err := s.settings.Effective(ctx)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > settings.MaxCSVBytes() {
		return nil, fmt.Errorf("%w: file exceeds %d MB", apperrors.ErrInvalidInput, settings.MaxCSVFileSizeMB)
	}

	text, encoding, err := DecodeCSV(data, settings.AllowsEncoding)
	if err != nil {
		return nil, err
	}
	table, err := ParseCSV(text)
	if err != nil {
		return nil, err
	}
	stats := table.Statistics()

	path, err := s.store(fileName, data)
	if err != nil {
		return nil, err
	}

	u := &models.CSVUpload{
		FileName:    fileName,
		FilePath:    path,
		FileSize:    int64(len(data)),
		RowCount:    stats.RowCount,
		ColumnCount: stats.ColumnCount,
		Encoding:    encoding,
		Statistics:  stats,
	}
	if err := s.repo.CreateUpload(ctx, u); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	s.logger.Info("CSV uploaded",
		zap.String("upload_id", u.ID.String()),
		zap.Int("rows", u.RowCount),
		zap.Int("columns", u.ColumnCount),
		zap.String("encoding", encoding))
	return u, nil
}

// store writes data under <upload_dir>/YYYY/MM/DD/ with a unique name.
func (s *csvService) store(fileName string, data []byte) (string, error) {
	dir := filepath.Join(s.uploadDir, s.now().Format("2006/01/02"))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	safe := unsafeFileChars.ReplaceAllString(fileName, "_")
	path := filepath.Join(dir, uuid.NewString()+"_"+safe)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, nil
}

func (s *csvService) ListUploads(ctx context.Context) ([]*models.CSVUpload, error) {
	return s.repo.ListUploads(ctx, visibleOwner(ctx))
}

func (s *csvService) GetUpload(ctx context.Context, id uuid.UUID) (*models.CSVUpload, error) {
	u, err := s.repo.GetUpload(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(ctx, u.UploadedBy); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *csvService) DeleteUpload(ctx context.Context, id uuid.UUID) error {
	u, err := s.GetUpload(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteUpload(ctx, id); err != nil {
		return err
	}
	s.removeFile(u.FilePath)
	return nil
}

func (s *csvService) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove CSV file", zap.String("path", path), zap.Error(err))
	}
}

func (s *csvService) CreateAnalysis(ctx context.Context, uploadID uuid.UUID, customPrompt string) (*models.Analysis, error) {
	u, err := s.GetUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	a := &models.Analysis{
		CSVUploadID:  u.ID,
		CustomPrompt: strings.TrimSpace(customPrompt),
		Status:       models.StatusPending,
	}
	if err := s.repo.CreateAnalysis(ctx, a); err != nil {
		return nil, err
	}

	s.tasks.Enqueue(s.newTask(a, u))
	return a, nil
}

func (s *csvService) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	a, err := s.repo.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(ctx, a.CreatedBy); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *csvService) ListAnalyses(ctx context.Context, uploadID *uuid.UUID) ([]*models.Analysis, error) {
	return s.repo.ListAnalyses(ctx, uploadID, visibleOwner(ctx))
}

func (s *csvService) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	old, err := s.repo.ListUploadsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, u := range old {
		if err := s.repo.DeleteUpload(ctx, u.ID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return deleted, err
		}
		s.removeFile(u.FilePath)
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("Deleted expired CSV uploads", zap.Int("count", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}
