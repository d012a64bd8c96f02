package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

const knowledgeStructuringTemperature = 0.3

// KnowledgeStructuringTask extracts a structured summary from one knowledge chunk.
type KnowledgeStructuringTask struct {
	workqueue.BaseTask
	repo        repositories.KnowledgeRepository
	templates   PromptTemplateService
	llmFactory  llm.LLMClientFactory
	taskCtx     TaskContextFunc
	logger      *zap.Logger
	knowledgeID uuid.UUID
	productName string
}

// NewKnowledgeStructuringTask creates a structuring task for k.
func NewKnowledgeStructuringTask(
	repo repositories.KnowledgeRepository,
	templates PromptTemplateService,
	llmFactory llm.LLMClientFactory,
	taskCtx TaskContextFunc,
	logger *zap.Logger,
	k *models.ProductKnowledge,
	productName string,
	owner *uuid.UUID,
) *KnowledgeStructuringTask {
	name := fmt.Sprintf("Structure knowledge for %s", productName)
	if k.Title != "" {
		name = fmt.Sprintf("Structure %q", k.Title)
	}
	return &KnowledgeStructuringTask{
		BaseTask:    workqueue.NewBaseTask(name, true, resourceRef(ResourceKnowledge, k.ID, owner)),
		repo:        repo,
		templates:   templates,
		llmFactory:  llmFactory,
		taskCtx:     taskCtx,
		logger:      logger.Named("knowledge-structuring"),
		knowledgeID: k.ID,
		productName: productName,
	}
}

var (
	_ workqueue.Task           = (*KnowledgeStructuringTask)(nil)
	_ workqueue.FailureHandler = (*KnowledgeStructuringTask)(nil)
)

// Execute implements workqueue.Task.
func (t *KnowledgeStructuringTask) Execute(ctx context.Context, rt workqueue.Runtime) error {
	scoped, cleanup, err := t.taskCtx(ctx, t.Resource())
	if err != nil {
		return fmt.Errorf("acquire task scope: %w", err)
	}
	defer cleanup()

	k, err := t.repo.GetByID(scoped, t.knowledgeID)
	if err != nil {
		return fmt.Errorf("load knowledge: %w", err)
	}
	if err := t.repo.SetStatus(scoped, k.ID, models.StatusProcessing, ""); err != nil {
		return err
	}
	rt.ReportProgress(20, "Extracting product information")

	vars := prompts.KnowledgeExtractionVars(t.productName, k.Content)
	resolved, err := t.templates.Resolve(scoped, prompts.TypeProductExtraction, vars, float64Ptr(knowledgeStructuringTemperature))
	if err != nil {
		return err
	}

	resp, err := generate(llm.WithPurpose(scoped, string(prompts.TypeProductExtraction)), t.llmFactory, resolved)
	if err != nil {
		return fmt.Errorf("knowledge extraction: %w", err)
	}

	structure, parseErr := llm.ParseJSONResponse[prompts.KnowledgeStructure](resp.Content)
	var note string
	if parseErr != nil || structure.Overview == "" {
		t.logger.Warn("Knowledge extraction reply unusable, storing fallback",
			zap.String("knowledge_id", k.ID.String()),
			zap.Error(parseErr))
		structure = prompts.FallbackKnowledge(k.Content)
		note = "AI reply could not be parsed; stored a plain overview"
	}

	data, err := json.Marshal(structure)
	if err != nil {
		return fmt.Errorf("marshal structured knowledge: %w", err)
	}
	if err := t.repo.SaveStructured(scoped, k.ID, data, note); err != nil {
		return err
	}

	t.logger.Info("Knowledge structured",
		zap.String("knowledge_id", k.ID.String()),
		zap.Int("tokens", resp.TotalTokens))
	return nil
}

// OnFailure keeps the fallback overview so the chunk stays usable, and marks it failed.
func (t *KnowledgeStructuringTask) OnFailure(ctx context.Context, err error) {
	scoped, cleanup, scopeErr := t.taskCtx(ctx, t.Resource())
	if scopeErr != nil {
		t.logger.Error("Failed to record knowledge failure", zap.Error(scopeErr))
		return
	}
	defer cleanup()

	k, getErr := t.repo.GetByID(scoped, t.knowledgeID)
	if getErr != nil {
		t.logger.Error("Failed to record knowledge failure",
			zap.String("knowledge_id", t.knowledgeID.String()),
			zap.Error(getErr))
		return
	}
	if saveErr := t.repo.SaveStructured(scoped, k.ID, fallbackStructure(k.Content), err.Error()); saveErr != nil {
		t.logger.Error("Failed to store fallback knowledge", zap.Error(saveErr))
	}
	if setErr := t.repo.SetStatus(scoped, k.ID, models.StatusFailed, err.Error()); setErr != nil {
		t.logger.Error("Failed to mark knowledge failed", zap.Error(setErr))
	}
}
