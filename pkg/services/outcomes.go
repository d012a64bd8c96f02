package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

// SalesOutcomeService records how meetings went and reports on them.
type SalesOutcomeService interface {
	Create(ctx context.Context, o *models.SalesOutcome) (*models.SalesOutcome, error)
	Get(ctx context.Context, id uuid.UUID) (*models.SalesOutcome, error)
	List(ctx context.Context, filter models.SalesOutcomeFilter) ([]*models.SalesOutcome, error)
	Update(ctx context.Context, id uuid.UUID, o *models.SalesOutcome) (*models.SalesOutcome, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*models.OutcomeStats, error)
}

type salesOutcomeService struct {
	repo       repositories.SalesOutcomeRepository
	scriptRepo repositories.TalkScriptRepository
	logger     *zap.Logger
}

// NewSalesOutcomeService creates a SalesOutcomeService.
func NewSalesOutcomeService(
	repo repositories.SalesOutcomeRepository,
	scriptRepo repositories.TalkScriptRepository,
	logger *zap.Logger,
) SalesOutcomeService {
	return &salesOutcomeService{repo: repo, scriptRepo: scriptRepo, logger: logger.Named("outcomes")}
}

var _ SalesOutcomeService = (*salesOutcomeService)(nil)

// checkScript makes sure the caller may record outcomes against scriptID.
func (s *salesOutcomeService) checkScript(ctx context.Context, scriptID uuid.UUID) error {
	script, err := s.scriptRepo.GetByID(ctx, scriptID)
	if err != nil {
		return fmt.Errorf("talk-script: %w", err)
	}
	return checkOwner(ctx, script.CreatedBy)
}

func validateOutcome(o *models.SalesOutcome) error {
	if !models.IsValidOutcome(o.Outcome) {
		return fmt.Errorf("%w: unknown outcome %q", apperrors.ErrInvalidInput, o.Outcome)
	}
	return nil
}

func (s *salesOutcomeService) Create(ctx context.Context, o *models.SalesOutcome) (*models.SalesOutcome, error) {
	if err := validateOutcome(o); err != nil {
		return nil, err
	}
	if err := s.checkScript(ctx, o.TalkScriptID); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	s.logger.Info("Sales outcome recorded",
		zap.String("outcome_id", o.ID.String()),
		zap.String("talk_script_id", o.TalkScriptID.String()),
		zap.String("outcome", o.Outcome))
	return o, nil
}

func (s *salesOutcomeService) Get(ctx context.Context, id uuid.UUID) (*models.SalesOutcome, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkScript(ctx, o.TalkScriptID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *salesOutcomeService) List(ctx context.Context, filter models.SalesOutcomeFilter) ([]*models.SalesOutcome, error) {
	if filter.Outcome != "" && !models.IsValidOutcome(filter.Outcome) {
		return nil, fmt.Errorf("%w: unknown outcome %q", apperrors.ErrInvalidInput, filter.Outcome)
	}
	filter.ScriptOwner = visibleOwner(ctx)
	return s.repo.List(ctx, filter)
}

func (s *salesOutcomeService) Update(ctx context.Context, id uuid.UUID, upd *models.SalesOutcome) (*models.SalesOutcome, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateOutcome(upd); err != nil {
		return nil, err
	}
	upd.ID = existing.ID
	upd.TalkScriptID = existing.TalkScriptID
	if err := s.repo.Update(ctx, upd); err != nil {
		return nil, err
	}
	return upd, nil
}

func (s *salesOutcomeService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *salesOutcomeService) Stats(ctx context.Context) (*models.OutcomeStats, error) {
	stats, err := s.repo.Stats(ctx, models.SalesOutcomeFilter{ScriptOwner: visibleOwner(ctx)})
	if err != nil {
		return nil, err
	}
	stats.SuccessRate = SuccessRate(stats.ByOutcome[models.OutcomeWon], stats.ByOutcome[models.OutcomeLost])
	return stats, nil
}

// SuccessRate returns won / (won + lost) as a percentage rounded to two
// decimals, or 0 when nothing has been decided.
func SuccessRate(won, lost int) float64 {
	decided := won + lost
	if decided == 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(won)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(decided))).
		Round(2)
	return rate.InexactFloat64()
}
