package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

// CompanyRequest carries the supplied website content and any manual profile fields.
type CompanyRequest struct {
	URL                 string   `json:"url"`
	Title               string   `json:"title"`
	MetaDescription     string   `json:"meta_description"`
	MainContent         string   `json:"main_content"`
	CompanyName         string   `json:"company_name"`
	BusinessDescription string   `json:"business_description"`
	Industry            string   `json:"industry"`
	KeyServices         []string `json:"key_services"`
	TargetMarket        string   `json:"target_market"`
	PainPoints          []string `json:"pain_points"`
	// Structure queues AI structuring after the save. Defaults to true on create.
	Structure *bool `json:"structure"`
}

// CompanyService manages target companies.
type CompanyService interface {
	List(ctx context.Context, filter models.CompanyFilter) ([]*models.Company, int, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Company, error)
	Create(ctx context.Context, req *CompanyRequest) (*models.Company, error)
	Update(ctx context.Context, id uuid.UUID, req *CompanyRequest) (*models.Company, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*models.CompanyStats, error)
	// Structure queues AI structuring of the company content.
	Structure(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

type companyService struct {
	repo     repositories.CompanyRepository
	settings SettingsService
	tasks    workqueue.TaskEnqueuer
	newTask  func(company *models.Company) workqueue.Task
	logger   *zap.Logger
}

// NewCompanyService creates a CompanyService. newTask builds the structuring task.
func NewCompanyService(
	repo repositories.CompanyRepository,
	settings SettingsService,
	tasks workqueue.TaskEnqueuer,
	newTask func(company *models.Company) workqueue.Task,
	logger *zap.Logger,
) CompanyService {
	return &companyService{
		repo:     repo,
		settings: settings,
		tasks:    tasks,
		newTask:  newTask,
		logger:   logger.Named("companies"),
	}
}

var _ CompanyService = (*companyService)(nil)

func (s *companyService) List(ctx context.Context, filter models.CompanyFilter) ([]*models.Company, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *companyService) Get(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *companyService) Create(ctx context.Context, req *CompanyRequest) (*models.Company, error) {
	rawURL := strings.TrimSpace(req.URL)
	domain := models.DomainFromURL(rawURL)
	if domain == "" {
		return nil, fmt.Errorf("%w: a valid http(s) url is required", apperrors.ErrInvalidInput)
	}

	c := &models.Company{
		URL:    rawURL,
		Domain: domain,
		Status: models.StatusPending,
	}
	applyCompanyRequest(c, req)
	c.ScrapeStatus = scrapeStatusOf(c)

	structure := req.Structure == nil || *req.Structure
	aiReady := structure && c.ScrapeStatus != models.ScrapeFailed && s.settings.AIEnabled(ctx)
	if !aiReady {
		c.Status = models.StatusCompleted
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("Company created",
		zap.String("company_id", c.ID.String()),
		zap.String("domain", c.Domain),
		zap.Bool("structuring", aiReady))

	if aiReady {
		s.tasks.Enqueue(s.newTask(c))
	}
	return c, nil
}

// scrapeStatusOf grades the supplied content: full text is a success,
// only title or description is partial, nothing at all failed.
func scrapeStatusOf(c *models.Company) string {
	switch {
	case strings.TrimSpace(c.MainContent) != "":
		return models.ScrapeSuccess
	case c.Title != "" || c.MetaDescription != "":
		return models.ScrapePartial
	default:
		return models.ScrapeFailed
	}
}

func applyCompanyRequest(c *models.Company, req *CompanyRequest) {
	if req.Title != "" {
		c.Title = req.Title
	}
	if req.MetaDescription != "" {
		c.MetaDescription = req.MetaDescription
	}
	if req.MainContent != "" {
		c.MainContent = req.MainContent
	}
	if req.CompanyName != "" {
		c.CompanyName = req.CompanyName
	}
	if req.BusinessDescription != "" {
		c.BusinessDescription = req.BusinessDescription
	}
	if req.Industry != "" {
		c.Industry = req.Industry
	}
	if req.KeyServices != nil {
		c.KeyServices = req.KeyServices
	}
	if req.TargetMarket != "" {
		c.TargetMarket = req.TargetMarket
	}
	if req.PainPoints != nil {
		c.PainPoints = req.PainPoints
	}
}

func (s *companyService) Update(ctx context.Context, id uuid.UUID, req *CompanyRequest) (*models.Company, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := req.MainContent != "" && req.MainContent != c.MainContent
	applyCompanyRequest(c, req)
	if contentChanged {
		c.ScrapeStatus = scrapeStatusOf(c)
		c.ScrapedAt = time.Now()
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	if req.Structure != nil && *req.Structure {
		return s.Structure(ctx, id)
	}
	return c, nil
}

func (s *companyService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Company deleted", zap.String("company_id", id.String()))
	return nil
}

func (s *companyService) Stats(ctx context.Context) (*models.CompanyStats, error) {
	return s.repo.Stats(ctx)
}

func (s *companyService) Structure(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == models.StatusProcessing {
		return nil, apperrors.ErrAlreadyProcessing
	}
	if !s.settings.AIEnabled(ctx) {
		return nil, apperrors.ErrAIDisabled
	}

	if err := s.repo.SetStatus(ctx, id, models.StatusPending, ""); err != nil {
		return nil, err
	}
	c.Status = models.StatusPending
	c.ErrorMessage = ""

	s.tasks.Enqueue(s.newTask(c))
	return c, nil
}
