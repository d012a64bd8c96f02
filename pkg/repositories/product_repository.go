package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// ProductRepository provides data access for the product catalogue.
type ProductRepository interface {
	CreateCategory(ctx context.Context, c *models.ProductCategory) error
	GetCategory(ctx context.Context, id uuid.UUID) (*models.ProductCategory, error)
	ListCategories(ctx context.Context) ([]*models.ProductCategory, error)
	UpdateCategory(ctx context.Context, c *models.ProductCategory) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// GetByIDs returns the products found, in the order of ids.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Product, error)
	// List orders by priority descending, then name.
	List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type productRepository struct{}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository() ProductRepository {
	return &productRepository{}
}

var _ ProductRepository = (*productRepository)(nil)

// ============================================================================
// Categories
// ============================================================================

func (r *productRepository) CreateCategory(ctx context.Context, c *models.ProductCategory) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO product_categories (name, description, parent_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Description, c.ParentID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return wrapErr("create product category", err)
}

func (r *productRepository) GetCategory(ctx context.Context, id uuid.UUID) (*models.ProductCategory, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	var c models.ProductCategory
	err = scope.Conn.QueryRow(ctx, `
		SELECT id, name, description, parent_id, created_at, updated_at
		FROM product_categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, wrapErr("get product category", err)
	}
	return &c, nil
}

func (r *productRepository) ListCategories(ctx context.Context) ([]*models.ProductCategory, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, name, description, parent_id, created_at, updated_at
		FROM product_categories ORDER BY name`)
	if err != nil {
		return nil, wrapErr("list product categories", err)
	}
	defer rows.Close()

	categories := make([]*models.ProductCategory, 0)
	for rows.Next() {
		var c models.ProductCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, wrapErr("scan product category", err)
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

func (r *productRepository) UpdateCategory(ctx context.Context, c *models.ProductCategory) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		UPDATE product_categories SET name = $2, description = $3, parent_id = $4
		WHERE id = $1
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Description, c.ParentID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return wrapErr("update product category", err)
}

func (r *productRepository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, "delete product category", `DELETE FROM product_categories WHERE id = $1`, id)
}

// ============================================================================
// Products
// ============================================================================

const productColumns = `p.id, p.name, p.code, p.category_id, COALESCE(c.name, ''), p.short_description,
	p.full_description, p.target_industries, p.target_customer_size, p.pain_points_solved,
	p.key_features, p.pricing_model, p.price_range, p.success_cases, p.competitive_advantages,
	p.is_active, p.priority, p.created_at, p.updated_at`

const productFrom = ` FROM products p LEFT JOIN product_categories c ON c.id = p.category_id`

func (r *productRepository) Create(ctx context.Context, p *models.Product) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	features, err := marshalFeatures(p.KeyFeatures)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (name, code, category_id, short_description, full_description,
		                      target_industries, target_customer_size, pain_points_solved,
		                      key_features, pricing_model, price_range, success_cases,
		                      competitive_advantages, is_active, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	err = scope.Conn.QueryRow(ctx, query,
		p.Name,
		p.Code,
		p.CategoryID,
		p.ShortDescription,
		p.FullDescription,
		nonNil(p.TargetIndustries),
		nonNil(p.TargetCustomerSize),
		nonNil(p.PainPointsSolved),
		features,
		p.PricingModel,
		p.PriceRange,
		p.SuccessCases,
		nonNil(p.CompetitiveAdvantages),
		p.IsActive,
		p.Priority,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return wrapErr("create product", err)
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	p, err := scanProduct(scope.Conn.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, wrapErr("get product", err)
	}
	return p, nil
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Product, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.Product{}, nil
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT `+productColumns+productFrom+` WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, wrapErr("get products", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*models.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, wrapErr("scan product", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("get products", err)
	}

	products := make([]*models.Product, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			products = append(products, p)
			delete(byID, id)
		}
	}
	return products, nil
}

func (r *productRepository) List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	var w whereBuilder
	if filter.CategoryID != nil {
		w.add("p.category_id = ?", *filter.CategoryID)
	}
	if filter.Industry != "" {
		w.add("? = ANY(p.target_industries)", filter.Industry)
	}
	if filter.Search != "" {
		w.add("(p.name ILIKE ? OR p.code ILIKE ?)", likePattern(filter.Search), likePattern(filter.Search))
	}
	if filter.ActiveOnly {
		w.add("p.is_active")
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT `+productColumns+productFrom+w.sql()+` ORDER BY p.priority DESC, p.name`, w.args...)
	if err != nil {
		return nil, wrapErr("list products", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, wrapErr("scan product", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *productRepository) Update(ctx context.Context, p *models.Product) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	features, err := marshalFeatures(p.KeyFeatures)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET name = $2, code = $3, category_id = $4, short_description = $5, full_description = $6,
		    target_industries = $7, target_customer_size = $8, pain_points_solved = $9,
		    key_features = $10, pricing_model = $11, price_range = $12, success_cases = $13,
		    competitive_advantages = $14, is_active = $15, priority = $16
		WHERE id = $1
		RETURNING created_at, updated_at`

	err = scope.Conn.QueryRow(ctx, query,
		p.ID,
		p.Name,
		p.Code,
		p.CategoryID,
		p.ShortDescription,
		p.FullDescription,
		nonNil(p.TargetIndustries),
		nonNil(p.TargetCustomerSize),
		nonNil(p.PainPointsSolved),
		features,
		p.PricingModel,
		p.PriceRange,
		p.SuccessCases,
		nonNil(p.CompetitiveAdvantages),
		p.IsActive,
		p.Priority,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return wrapErr("update product", err)
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, "delete product", `DELETE FROM products WHERE id = $1`, id)
}

func marshalFeatures(features []models.ProductFeature) ([]byte, error) {
	if features == nil {
		features = []models.ProductFeature{}
	}
	b, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key features: %w", err)
	}
	return b, nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	var features []byte
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Code,
		&p.CategoryID,
		&p.CategoryName,
		&p.ShortDescription,
		&p.FullDescription,
		&p.TargetIndustries,
		&p.TargetCustomerSize,
		&p.PainPointsSolved,
		&features,
		&p.PricingModel,
		&p.PriceRange,
		&p.SuccessCases,
		&p.CompetitiveAdvantages,
		&p.IsActive,
		&p.Priority,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.KeyFeatures); err != nil {
			return nil, fmt.Errorf("failed to decode key features: %w", err)
		}
	}
	return &p, nil
}
