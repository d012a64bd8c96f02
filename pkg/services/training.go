package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

// TrainingService records the caller's practice sessions.
type TrainingService interface {
	Create(ctx context.Context, s *models.TrainingSession) (*models.TrainingSession, error)
	List(ctx context.Context) ([]*models.TrainingSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	MyStats(ctx context.Context) (*models.TrainingStats, error)
}

type trainingService struct {
	repo   repositories.TrainingRepository
	logger *zap.Logger
}

// NewTrainingService creates a TrainingService.
func NewTrainingService(repo repositories.TrainingRepository, logger *zap.Logger) TrainingService {
	return &trainingService{repo: repo, logger: logger.Named("training")}
}

var _ TrainingService = (*trainingService)(nil)

func (s *trainingService) Create(ctx context.Context, session *models.TrainingSession) (*models.TrainingSession, error) {
	userID, err := auth.RequireUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if session.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", apperrors.ErrInvalidInput)
	}
	if r := session.SelfRating; r != nil && (*r < 1 || *r > 5) {
		return nil, fmt.Errorf("%w: self_rating must be between 1 and 5", apperrors.ErrInvalidInput)
	}
	sections := make([]string, 0, len(session.SectionsPracticed))
	for _, name := range session.SectionsPracticed {
		section, ok := prompts.NormalizeSection(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown section %q", apperrors.ErrInvalidInput, name)
		}
		sections = append(sections, section)
	}

	session.UserID = userID
	session.SectionsPracticed = prompts.Dedupe(sections)
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *trainingService) List(ctx context.Context) ([]*models.TrainingSession, error) {
	userID, err := auth.RequireUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *trainingService) Delete(ctx context.Context, id uuid.UUID) error {
	userID, err := auth.RequireUserIDFromContext(ctx)
	if err != nil {
		return err
	}
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return apperrors.ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

func (s *trainingService) MyStats(ctx context.Context) (*models.TrainingStats, error) {
	userID, err := auth.RequireUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stats.AverageRating != nil {
		avg := decimal.NewFromFloat(*stats.AverageRating).Round(2).InexactFloat64()
		stats.AverageRating = &avg
	}
	return stats, nil
}
