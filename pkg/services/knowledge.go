package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
)

// AddKnowledgeRequest is reference material to attach to a product.
type AddKnowledgeRequest struct {
	SourceType string `json:"source_type"`
	SourceURL  string `json:"source_url"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// KnowledgeService manages product knowledge chunks.
type KnowledgeService interface {
	List(ctx context.Context, productID uuid.UUID) ([]*models.ProductKnowledge, error)
	// Add chunks the content and stores one row per chunk. Each chunk is queued
	// for AI structuring, or gets the fallback structure when AI is off.
	Add(ctx context.Context, productID uuid.UUID, req *AddKnowledgeRequest) ([]*models.ProductKnowledge, error)
	Delete(ctx context.Context, productID, id uuid.UUID) error
	// Reprocess re-runs AI structuring of one chunk.
	Reprocess(ctx context.Context, productID, id uuid.UUID) (*models.ProductKnowledge, error)
}

// KnowledgeTaskFactory builds the structuring task of a chunk.
type KnowledgeTaskFactory func(k *models.ProductKnowledge, productName string, owner *uuid.UUID) workqueue.Task

type knowledgeService struct {
	repo        repositories.KnowledgeRepository
	productRepo repositories.ProductRepository
	settings    SettingsService
	tasks       workqueue.TaskEnqueuer
	newTask     KnowledgeTaskFactory
	logger      *zap.Logger
}

// NewKnowledgeService creates a KnowledgeService.
func NewKnowledgeService(
	repo repositories.KnowledgeRepository,
	productRepo repositories.ProductRepository,
	settings SettingsService,
	tasks workqueue.TaskEnqueuer,
	newTask KnowledgeTaskFactory,
	logger *zap.Logger,
) KnowledgeService {
	return &knowledgeService{
		repo:        repo,
		productRepo: productRepo,
		settings:    settings,
		tasks:       tasks,
		newTask:     newTask,
		logger:      logger.Named("knowledge"),
	}
}

var _ KnowledgeService = (*knowledgeService)(nil)

func (s *knowledgeService) List(ctx context.Context, productID uuid.UUID) ([]*models.ProductKnowledge, error) {
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListByProduct(ctx, productID)
}

func (s *knowledgeService) Add(ctx context.Context, productID uuid.UUID, req *AddKnowledgeRequest) ([]*models.ProductKnowledge, error) {
	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = models.KnowledgeSourceText
	}
	if !models.IsValidKnowledgeSource(sourceType) {
		return nil, fmt.Errorf("%w: unknown source_type %q", apperrors.ErrInvalidInput, sourceType)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", apperrors.ErrInvalidInput)
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	aiEnabled := s.settings.AIEnabled(ctx)
	chunks := ChunkText(content, KnowledgeChunkSize)
	created := make([]*models.ProductKnowledge, 0, len(chunks))
	for i, chunk := range chunks {
		k := &models.ProductKnowledge{
			ProductID:   productID,
			SourceType:  sourceType,
			SourceURL:   req.SourceURL,
			Title:       chunkTitle(req.Title, i, len(chunks)),
			Content:     chunk,
			ContentHash: models.ContentHash(chunk),
			ChunkIndex:  i,
			IsActive:    true,
			Status:      models.StatusPending,
		}
		if !aiEnabled {
			k.Status = models.StatusCompleted
			k.StructuredData = fallbackStructure(chunk)
		}
		if err := s.repo.Create(ctx, k); err != nil {
			return created, err
		}
		created = append(created, k)
	}

	if aiEnabled {
		owner := ownerFromContext(ctx)
		for _, k := range created {
			s.tasks.Enqueue(s.newTask(k, product.Name, owner))
		}
	}

	s.logger.Info("Product knowledge added",
		zap.String("product_id", productID.String()),
		zap.Int("chunks", len(created)),
		zap.Bool("structuring", aiEnabled))
	return created, nil
}

func chunkTitle(title string, index, total int) string {
	if total <= 1 || title == "" {
		return title
	}
	return fmt.Sprintf("%s (%d/%d)", title, index+1, total)
}

func fallbackStructure(content string) json.RawMessage {
	data, _ := json.Marshal(prompts.FallbackKnowledge(content))
	return data
}

func ownerFromContext(ctx context.Context) *uuid.UUID {
	if id, ok := auth.GetUserIDFromContext(ctx); ok {
		return &id
	}
	return nil
}

func (s *knowledgeService) Delete(ctx context.Context, productID, id uuid.UUID) error {
	return s.repo.Delete(ctx, productID, id)
}

func (s *knowledgeService) Reprocess(ctx context.Context, productID, id uuid.UUID) (*models.ProductKnowledge, error) {
	k, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if k.ProductID != productID {
		return nil, apperrors.ErrNotFound
	}
	if k.Status == models.StatusProcessing {
		return nil, apperrors.ErrAlreadyProcessing
	}
	if !s.settings.AIEnabled(ctx) {
		return nil, apperrors.ErrAIDisabled
	}
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetStatus(ctx, id, models.StatusPending, ""); err != nil {
		return nil, err
	}
	k.Status = models.StatusPending
	k.ErrorMessage = ""

	s.tasks.Enqueue(s.newTask(k, product.Name, ownerFromContext(ctx)))
	return k, nil
}
