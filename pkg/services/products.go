package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

// ProductService manages the product catalogue.
type ProductService interface {
	ListCategories(ctx context.Context) ([]*models.ProductCategory, error)
	CreateCategory(ctx context.Context, c *models.ProductCategory) (*models.ProductCategory, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, c *models.ProductCategory) (*models.ProductCategory, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, p *models.Product) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	repo   repositories.ProductRepository
	logger *zap.Logger
}

// NewProductService creates a ProductService.
func NewProductService(repo repositories.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{repo: repo, logger: logger.Named("products")}
}

var _ ProductService = (*productService)(nil)

func (s *productService) ListCategories(ctx context.Context) ([]*models.ProductCategory, error) {
	return s.repo.ListCategories(ctx)
}

func (s *productService) CreateCategory(ctx context.Context, c *models.ProductCategory) (*models.ProductCategory, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, fmt.Errorf("%w: category name is required", apperrors.ErrInvalidInput)
	}
	if c.ParentID != nil {
		if _, err := s.repo.GetCategory(ctx, *c.ParentID); err != nil {
			return nil, fmt.Errorf("parent category: %w", err)
		}
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *productService) UpdateCategory(ctx context.Context, id uuid.UUID, upd *models.ProductCategory) (*models.ProductCategory, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(upd.Name); name != "" {
		c.Name = name
	}
	if upd.Description != "" {
		c.Description = upd.Description
	}
	if upd.ParentID != nil {
		if *upd.ParentID == id {
			return nil, fmt.Errorf("%w: a category cannot be its own parent", apperrors.ErrInvalidInput)
		}
		c.ParentID = upd.ParentID
	}
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *productService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteCategory(ctx, id)
}

func (s *productService) List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	return s.repo.List(ctx, filter)
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func validateProduct(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", apperrors.ErrInvalidInput)
	}
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: product code is required", apperrors.ErrInvalidInput)
	}
	for i, f := range p.KeyFeatures {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: key_features[%d] needs a name", apperrors.ErrInvalidInput, i)
		}
	}
	return nil
}

func (s *productService) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Code = strings.TrimSpace(p.Code)
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("Product created", zap.String("product_id", p.ID.String()), zap.String("code", p.Code))
	return p, nil
}

// Update replaces the editable fields of the product with those of upd.
func (s *productService) Update(ctx context.Context, id uuid.UUID, upd *models.Product) (*models.Product, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	upd.ID = id
	upd.Name = strings.TrimSpace(upd.Name)
	upd.Code = strings.TrimSpace(upd.Code)
	if err := validateProduct(upd); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, upd); err != nil {
		return nil, err
	}
	return upd, nil
}

func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}
