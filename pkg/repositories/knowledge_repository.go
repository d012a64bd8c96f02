package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// KnowledgeRepository provides data access for product knowledge chunks.
type KnowledgeRepository interface {
	// Create inserts one chunk; a chunk whose content hash already exists for the
	// product fails with apperrors.ErrConflict.
	Create(ctx context.Context, k *models.ProductKnowledge) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProductKnowledge, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*models.ProductKnowledge, error)
	SetStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error
	// SaveStructured stores the structured data and marks the chunk completed.
	SaveStructured(ctx context.Context, id uuid.UUID, data json.RawMessage, errorMessage string) error
	Delete(ctx context.Context, productID, id uuid.UUID) error
	// FailStuck marks chunks left processing since before cutoff as failed.
	FailStuck(ctx context.Context, cutoff time.Time) (int64, error)
}

type knowledgeRepository struct{}

// NewKnowledgeRepository creates a new KnowledgeRepository.
func NewKnowledgeRepository() KnowledgeRepository {
	return &knowledgeRepository{}
}

var _ KnowledgeRepository = (*knowledgeRepository)(nil)

const knowledgeColumns = `id, product_id, source_type, source_url, title, content, structured_data,
	content_hash, chunk_index, is_active, status, error_message, processed_at, created_at, updated_at`

func (r *knowledgeRepository) Create(ctx context.Context, k *models.ProductKnowledge) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	structured := k.StructuredData
	if len(structured) == 0 {
		structured = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO product_knowledge (product_id, source_type, source_url, title, content,
		                               structured_data, content_hash, chunk_index, is_active, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err = scope.Conn.QueryRow(ctx, query,
		k.ProductID,
		k.SourceType,
		k.SourceURL,
		k.Title,
		k.Content,
		[]byte(structured),
		k.ContentHash,
		k.ChunkIndex,
		k.IsActive,
		k.Status,
	).Scan(&k.ID, &k.CreatedAt, &k.UpdatedAt)
	return wrapErr("create product knowledge", err)
}

func (r *knowledgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProductKnowledge, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	k, err := scanKnowledge(scope.Conn.QueryRow(ctx,
		`SELECT `+knowledgeColumns+` FROM product_knowledge WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get product knowledge", err)
	}
	return k, nil
}

func (r *knowledgeRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*models.ProductKnowledge, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT `+knowledgeColumns+`
		FROM product_knowledge
		WHERE product_id = $1
		ORDER BY created_at, chunk_index`, productID)
	if err != nil {
		return nil, wrapErr("list product knowledge", err)
	}
	defer rows.Close()

	items := make([]*models.ProductKnowledge, 0)
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, wrapErr("scan product knowledge", err)
		}
		items = append(items, k)
	}
	return items, rows.Err()
}

func (r *knowledgeRepository) SetStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	return execOne(ctx, "set knowledge status",
		`UPDATE product_knowledge SET status = $2, error_message = $3 WHERE id = $1`, id, status, errorMessage)
}

func (r *knowledgeRepository) SaveStructured(ctx context.Context, id uuid.UUID, data json.RawMessage, errorMessage string) error {
	return execOne(ctx, "save structured knowledge", `
		UPDATE product_knowledge
		SET structured_data = $2, error_message = $3, status = 'completed', processed_at = now()
		WHERE id = $1`, id, []byte(data), errorMessage)
}

func (r *knowledgeRepository) Delete(ctx context.Context, productID, id uuid.UUID) error {
	return execOne(ctx, "delete product knowledge",
		`DELETE FROM product_knowledge WHERE id = $1 AND product_id = $2`, id, productID)
}

func (r *knowledgeRepository) FailStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return 0, err
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE product_knowledge
		SET status = 'failed', error_message = 'processing timed out'
		WHERE status = 'processing' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, wrapErr("fail stuck knowledge", err)
	}
	return result.RowsAffected(), nil
}

func scanKnowledge(row pgx.Row) (*models.ProductKnowledge, error) {
	var k models.ProductKnowledge
	var structured []byte
	err := row.Scan(
		&k.ID,
		&k.ProductID,
		&k.SourceType,
		&k.SourceURL,
		&k.Title,
		&k.Content,
		&structured,
		&k.ContentHash,
		&k.ChunkIndex,
		&k.IsActive,
		&k.Status,
		&k.ErrorMessage,
		&k.ProcessedAt,
		&k.CreatedAt,
		&k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	k.StructuredData = structured
	return &k, nil
}
