package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

// companyStructuringTemperature keeps extraction close to the source text.
const companyStructuringTemperature = 0.3

// CompanyStructuringTask asks the LLM to turn a company's website content into a profile.
type CompanyStructuringTask struct {
	workqueue.BaseTask
	repo       repositories.CompanyRepository
	templates  PromptTemplateService
	llmFactory llm.LLMClientFactory
	taskCtx    TaskContextFunc
	logger     *zap.Logger
	companyID  uuid.UUID
}

// NewCompanyStructuringTask creates a structuring task for company.
func NewCompanyStructuringTask(
	repo repositories.CompanyRepository,
	templates PromptTemplateService,
	llmFactory llm.LLMClientFactory,
	taskCtx TaskContextFunc,
	logger *zap.Logger,
	company *models.Company,
) *CompanyStructuringTask {
	return &CompanyStructuringTask{
		BaseTask: workqueue.NewBaseTask(
			fmt.Sprintf("Structure %s", company.DisplayName()),
			true,
			resourceRef(ResourceCompany, company.ID, company.CreatedBy),
		),
		repo:       repo,
		templates:  templates,
		llmFactory: llmFactory,
		taskCtx:    taskCtx,
		logger:     logger.Named("company-structuring"),
		companyID:  company.ID,
	}
}

var (
	_ workqueue.Task           = (*CompanyStructuringTask)(nil)
	_ workqueue.FailureHandler = (*CompanyStructuringTask)(nil)
)

// Execute implements workqueue.Task.
func (t *CompanyStructuringTask) Execute(ctx context.Context, rt workqueue.Runtime) error {
	scoped, cleanup, err := t.taskCtx(ctx, t.Resource())
	if err != nil {
		return fmt.Errorf("acquire task scope: %w", err)
	}
	defer cleanup()

	c, err := t.repo.GetByID(scoped, t.companyID)
	if err != nil {
		return fmt.Errorf("load company: %w", err)
	}
	if err := t.repo.SetStatus(scoped, c.ID, models.StatusProcessing, ""); err != nil {
		return err
	}
	rt.ReportProgress(20, "Analyzing website content")

	vars := prompts.CompanyAnalysisVars(prompts.CompanyContent{
		Title:           c.Title,
		MetaDescription: c.MetaDescription,
		MainContent:     c.MainContent,
	})
	resolved, err := t.templates.Resolve(scoped, prompts.TypeCompanyAnalysis, vars, float64Ptr(companyStructuringTemperature))
	if err != nil {
		return err
	}

	resp, err := generate(llm.WithPurpose(scoped, string(prompts.TypeCompanyAnalysis)), t.llmFactory, resolved)
	if err != nil {
		return fmt.Errorf("company analysis: %w", err)
	}
	rt.ReportProgress(80, "Saving company profile")

	applyCompanyAnalysis(c, resp.Content, t.logger)
	c.Status = models.StatusCompleted
	c.ErrorMessage = ""
	if err := t.repo.Update(scoped, c); err != nil {
		return err
	}

	t.logger.Info("Company structured",
		zap.String("company_id", c.ID.String()),
		zap.String("scrape_status", c.ScrapeStatus),
		zap.Int("tokens", resp.TotalTokens))
	return nil
}

// applyCompanyAnalysis copies the parsed reply onto c. A reply that is not
// valid JSON is kept as the summary and the company is marked partial.
func applyCompanyAnalysis(c *models.Company, reply string, logger *zap.Logger) {
	analysis, err := llm.ParseJSONResponse[prompts.CompanyAnalysis](reply)
	if err != nil {
		logger.Warn("Company analysis reply is not JSON, storing raw text",
			zap.String("company_id", c.ID.String()),
			zap.Error(err))
		c.AISummary = reply
		c.ScrapeStatus = models.ScrapePartial
		return
	}

	if analysis.CompanyName != "" {
		c.CompanyName = analysis.CompanyName.String()
	}
	if analysis.BusinessDescription != "" {
		c.BusinessDescription = analysis.BusinessDescription.String()
	}
	if analysis.Industry != "" {
		c.Industry = analysis.Industry.String()
	}
	if len(analysis.KeyServices) > 0 {
		c.KeyServices = analysis.KeyServices.Strings()
	}
	if analysis.TargetMarket != "" {
		c.TargetMarket = analysis.TargetMarket.String()
	}
	if len(analysis.PainPoints) > 0 {
		c.PainPoints = analysis.PainPoints.Strings()
	}
	c.AISummary = analysis.AISummary.String()
}

// OnFailure implements workqueue.FailureHandler.
func (t *CompanyStructuringTask) OnFailure(ctx context.Context, err error) {
	scoped, cleanup, scopeErr := t.taskCtx(ctx, t.Resource())
	if scopeErr != nil {
		t.logger.Error("Failed to record structuring failure", zap.Error(scopeErr))
		return
	}
	defer cleanup()

	if updErr := t.repo.SetStatus(scoped, t.companyID, models.StatusFailed, err.Error()); updErr != nil {
		t.logger.Error("Failed to record structuring failure",
			zap.String("company_id", t.companyID.String()),
			zap.Error(updErr))
	}
}
