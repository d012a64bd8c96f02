package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

const (
	csvAnalysisTemperature = 0.7
	csvAnalysisMaxTokens   = 2000
)

// aiDisabledNote heads the result of an analysis run while AI is switched off.
const aiDisabledNote = "AI analysis is disabled. Only descriptive statistics are available."

// CSVAnalysisTask runs one AI analysis of a CSV upload.
type CSVAnalysisTask struct {
	workqueue.BaseTask
	repo       repositories.CSVRepository
	settings   SettingsService
	templates  PromptTemplateService
	llmFactory llm.LLMClientFactory
	taskCtx    TaskContextFunc
	logger     *zap.Logger
	analysisID uuid.UUID
}

// NewCSVAnalysisTask creates the task for analysis a of upload.
func NewCSVAnalysisTask(
	repo repositories.CSVRepository,
	settings SettingsService,
	templates PromptTemplateService,
	llmFactory llm.LLMClientFactory,
	taskCtx TaskContextFunc,
	logger *zap.Logger,
	a *models.Analysis,
	upload *models.CSVUpload,
) *CSVAnalysisTask {
	return &CSVAnalysisTask{
		BaseTask: workqueue.NewBaseTask(
			fmt.Sprintf("Analyze %s", upload.FileName),
			true,
			resourceRef(ResourceAnalysis, a.ID, a.CreatedBy),
		),
		repo:       repo,
		settings:   settings,
		templates:  templates,
		llmFactory: llmFactory,
		taskCtx:    taskCtx,
		logger:     logger.Named("csv-analysis"),
		analysisID: a.ID,
	}
}

var (
	_ workqueue.Task           = (*CSVAnalysisTask)(nil)
	_ workqueue.FailureHandler = (*CSVAnalysisTask)(nil)
)

// Execute implements workqueue.Task.
func (t *CSVAnalysisTask) Execute(ctx context.Context, rt workqueue.Runtime) error {
	scoped, cleanup, err := t.taskCtx(ctx, t.Resource())
	if err != nil {
		return fmt.Errorf("acquire task scope: %w", err)
	}
	defer cleanup()

	a, err := t.repo.GetAnalysis(scoped, t.analysisID)
	if err != nil {
		return fmt.Errorf("load analysis: %w", err)
	}
	upload, err := t.repo.GetUpload(scoped, a.CSVUploadID)
	if err != nil {
		return fmt.Errorf("load upload: %w", err)
	}
	if err := t.repo.SetAnalysisStatus(scoped, a.ID, models.StatusProcessing, ""); err != nil {
		return err
	}
	rt.ReportProgress(10, "Reading CSV")

	table, stats, err := loadCSV(upload)
	if err != nil {
		return err
	}
	basicStats, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}

	if !t.settings.AIEnabled(scoped) {
		a.Result = aiDisabledNote + "\n\n" + string(basicStats)
		a.Prompt = ""
		return t.repo.CompleteAnalysis(scoped, a)
	}

	rt.ReportProgress(30, "Building prompt")
	vars := prompts.CSVAnalysisVars(table.DataSummary(stats), string(basicStats))
	resolved, err := t.templates.Resolve(scoped, prompts.TypeCSVAnalysis, vars, float64Ptr(csvAnalysisTemperature))
	if err != nil {
		return err
	}
	if a.CustomPrompt != "" {
		resolved.User = prompts.Render(a.CustomPrompt, vars)
		resolved.TemplateID = nil
	}
	resolved.MaxTokens = csvAnalysisMaxTokens

	rt.ReportProgress(50, "Waiting for AI analysis")
	resp, err := generate(llm.WithPurpose(scoped, string(prompts.TypeCSVAnalysis)), t.llmFactory, resolved)
	if err != nil {
		return fmt.Errorf("csv analysis: %w", err)
	}

	a.Prompt = resolved.User
	a.PromptTemplateID = resolved.TemplateID
	a.Result = resp.Content
	a.ModelUsed = resp.Model
	a.TokenCount = resp.TotalTokens
	if err := t.repo.CompleteAnalysis(scoped, a); err != nil {
		return err
	}

	t.logger.Info("CSV analysis completed",
		zap.String("analysis_id", a.ID.String()),
		zap.String("model", a.ModelUsed),
		zap.Int("tokens", a.TokenCount),
		zap.Int("attempt", rt.Attempt()))
	return nil
}

func loadCSV(upload *models.CSVUpload) (*CSVTable, *models.CSVStatistics, error) {
	data, err := os.ReadFile(upload.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", upload.FileName, err)
	}
	text, _, err := DecodeCSV(data, func(string) bool { return true })
	if err != nil {
		return nil, nil, err
	}
	table, err := ParseCSV(text)
	if err != nil {
		return nil, nil, err
	}
	return table, table.Statistics(), nil
}

// OnFailure implements workqueue.FailureHandler.
func (t *CSVAnalysisTask) OnFailure(ctx context.Context, err error) {
	scoped, cleanup, scopeErr := t.taskCtx(ctx, t.Resource())
	if scopeErr != nil {
		t.logger.Error("Failed to record analysis failure", zap.Error(scopeErr))
		return
	}
	defer cleanup()

	if updErr := t.repo.SetAnalysisStatus(scoped, t.analysisID, models.StatusFailed, err.Error()); updErr != nil {
		t.logger.Error("Failed to record analysis failure",
			zap.String("analysis_id", t.analysisID.String()),
			zap.Error(updErr))
	}
}
