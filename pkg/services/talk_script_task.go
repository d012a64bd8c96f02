package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

// sectionErrorContent is stored for a section whose generation failed.
func sectionErrorContent(err error) string {
	return fmt.Sprintf("[generation error: %s]", err.Error())
}

// TalkScriptTask runs the generation pipeline of one talk-script:
// match products, build the learning context, generate each section, persist.
type TalkScriptTask struct {
	workqueue.BaseTask
	repo         repositories.TalkScriptRepository
	companyRepo  repositories.CompanyRepository
	csvRepo      repositories.CSVRepository
	templateRepo repositories.PromptTemplateRepository
	matching     MatchingService
	templates    PromptTemplateService
	llmFactory   llm.LLMClientFactory
	taskCtx      TaskContextFunc
	logger       *zap.Logger
	scriptID     uuid.UUID
	now          func() time.Time
}

// TalkScriptTaskDeps are the collaborators shared by every generation task.
type TalkScriptTaskDeps struct {
	Repo         repositories.TalkScriptRepository
	CompanyRepo  repositories.CompanyRepository
	CSVRepo      repositories.CSVRepository
	TemplateRepo repositories.PromptTemplateRepository
	Matching     MatchingService
	Templates    PromptTemplateService
	LLMFactory   llm.LLMClientFactory
	TaskCtx      TaskContextFunc
	Logger       *zap.Logger
}

// NewTalkScriptTask creates the generation task for script.
func NewTalkScriptTask(deps TalkScriptTaskDeps, script *models.TalkScript) *TalkScriptTask {
	name := "Generate talk-script"
	if script.CompanyName != "" {
		name = fmt.Sprintf("Generate talk-script for %s", script.CompanyName)
	}
	return &TalkScriptTask{
		BaseTask:     workqueue.NewBaseTask(name, true, resourceRef(ResourceTalkScript, script.ID, script.CreatedBy)),
		repo:         deps.Repo,
		companyRepo:  deps.CompanyRepo,
		csvRepo:      deps.CSVRepo,
		templateRepo: deps.TemplateRepo,
		matching:     deps.Matching,
		templates:    deps.Templates,
		llmFactory:   deps.LLMFactory,
		taskCtx:      deps.TaskCtx,
		logger:       deps.Logger.Named("talk-script-generation"),
		scriptID:     script.ID,
		now:          time.Now,
	}
}

var (
	_ workqueue.Task           = (*TalkScriptTask)(nil)
	_ workqueue.FailureHandler = (*TalkScriptTask)(nil)
)

// Execute implements workqueue.Task.
func (t *TalkScriptTask) Execute(ctx context.Context, rt workqueue.Runtime) error {
	scoped, cleanup, err := t.taskCtx(ctx, t.Resource())
	if err != nil {
		return fmt.Errorf("acquire task scope: %w", err)
	}
	defer cleanup()

	started := t.now()
	rt.ReportProgress(0, "Loading company")

	script, err := t.repo.GetByID(scoped, t.scriptID)
	if err != nil {
		return fmt.Errorf("load talk-script: %w", err)
	}
	if err := t.repo.SetGenerationStatus(scoped, script.ID, models.StatusProcessing, ""); err != nil {
		return err
	}
	company, err := t.companyRepo.GetByID(scoped, script.CompanyID)
	if err != nil {
		return fmt.Errorf("load company: %w", err)
	}
	analysis := t.analysisText(scoped, script.AnalysisID)

	rt.ReportProgress(20, "Matching products")
	match, err := t.matching.Match(scoped, company, analysis, script.PinnedProductIDs)
	if err != nil {
		return fmt.Errorf("match products: %w", err)
	}
	learning, err := t.matching.LearningContext(scoped, company.Industry)
	if err != nil {
		return fmt.Errorf("learning context: %w", err)
	}

	sc := prompts.ScriptContext{
		Company:        profileOf(company),
		AnalysisResult: analysis,
		Learning:       *learning,
	}
	for _, m := range match.Matches {
		sc.Products = append(sc.Products, prompts.ScriptProduct{
			Name:             m.Product.Name,
			ShortDescription: m.Product.ShortDescription,
			ProposalAngle:    m.ProposalAngle,
		})
	}

	var chosen *models.PromptTemplate
	if script.TemplateID != nil {
		chosen, err = t.templateRepo.GetByID(scoped, *script.TemplateID)
		if err != nil {
			t.logger.Warn("Chosen template unavailable, using section defaults",
				zap.String("template_id", script.TemplateID.String()),
				zap.Error(err))
			chosen = nil
		}
	}

	rt.ReportProgress(50, "Generating sections")
	gen := &models.ScriptGeneration{
		Sections:    make(map[string]string, len(script.SelectedSections)),
		TotalTokens: match.Tokens,
	}
	for i, section := range script.SelectedSections {
		content, model, tokens := t.generateSection(scoped, section, sc, chosen)
		gen.Sections[section] = content
		gen.TotalTokens += tokens
		if gen.ModelUsed == "" {
			gen.ModelUsed = model
		}
		rt.ReportProgress(50+30*(i+1)/len(script.SelectedSections), fmt.Sprintf("Generated %s", prompts.SectionTitle(section)))
	}

	rt.ReportProgress(80, "Saving talk-script")
	gen.GenerationTimeSeconds = t.now().Sub(started).Seconds()
	if err := t.repo.SaveGeneration(scoped, script.ID, gen); err != nil {
		return err
	}

	links := make([]*models.ProposalProductLink, 0, len(match.Matches))
	for i, m := range match.Matches {
		links = append(links, &models.ProposalProductLink{
			TalkScriptID:    script.ID,
			ProductID:       m.Product.ID,
			RelevanceScore:  m.RelevanceScore,
			MatchingReasons: m.MatchingReasons,
			ProposalAngle:   m.ProposalAngle,
			ProposalOrder:   i + 1,
		})
	}
	if err := t.repo.ReplaceProductLinks(scoped, script.ID, links); err != nil {
		return err
	}

	rt.ReportProgress(100, "Done")
	t.logger.Info("Talk-script generated",
		zap.String("script_id", script.ID.String()),
		zap.Int("sections", len(gen.Sections)),
		zap.Int("products", len(links)),
		zap.Int("tokens", gen.TotalTokens),
		zap.Float64("seconds", gen.GenerationTimeSeconds))
	return nil
}

// analysisText returns the result of a completed analysis, or "" when there is none.
func (t *TalkScriptTask) analysisText(ctx context.Context, id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	a, err := t.csvRepo.GetAnalysis(ctx, *id)
	if err != nil {
		t.logger.Warn("Analysis unavailable for talk-script", zap.String("analysis_id", id.String()), zap.Error(err))
		return ""
	}
	if a.Status != models.StatusCompleted {
		return ""
	}
	return a.Result
}

// generateSection renders and sends one section prompt. Failures become the
// section content so the remaining sections still run.
func (t *TalkScriptTask) generateSection(ctx context.Context, section string, sc prompts.ScriptContext, chosen *models.PromptTemplate) (content, model string, tokens int) {
	sectionType := prompts.SectionTemplateType(section)
	vars := prompts.SectionVars(section, sc)
	callCtx := llm.WithLabels(ctx, map[string]string{"purpose": string(sectionType), "section": section})

	var (
		resolved *models.ResolvedPrompt
		err      error
	)
	if chosen != nil && (chosen.TemplateType == sectionType || chosen.TemplateType == prompts.TypeCustom) {
		resolved, err = t.templates.ResolveTemplate(ctx, chosen, vars, nil)
	} else {
		resolved, err = t.templates.Resolve(ctx, sectionType, vars, nil)
	}
	if err != nil {
		t.logger.Warn("Section prompt unavailable", zap.String("section", section), zap.Error(err))
		return sectionErrorContent(err), "", 0
	}

	resp, err := generate(callCtx, t.llmFactory, resolved)
	if err != nil {
		t.logger.Warn("Section generation failed", zap.String("section", section), zap.Error(err))
		return sectionErrorContent(err), "", 0
	}
	return resp.Content, resp.Model, resp.TotalTokens
}

// OnFailure implements workqueue.FailureHandler.
func (t *TalkScriptTask) OnFailure(ctx context.Context, err error) {
	scoped, cleanup, scopeErr := t.taskCtx(ctx, t.Resource())
	if scopeErr != nil {
		t.logger.Error("Failed to record generation failure", zap.Error(scopeErr))
		return
	}
	defer cleanup()

	if updErr := t.repo.SetGenerationStatus(scoped, t.scriptID, models.StatusFailed, err.Error()); updErr != nil {
		t.logger.Error("Failed to record generation failure",
			zap.String("script_id", t.scriptID.String()),
			zap.Error(updErr))
	}
}
