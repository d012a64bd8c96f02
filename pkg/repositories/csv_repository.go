package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// CSVRepository provides data access for CSV uploads and their analyses.
type CSVRepository interface {
	CreateUpload(ctx context.Context, u *models.CSVUpload) error
	GetUpload(ctx context.Context, id uuid.UUID) (*models.CSVUpload, error)
	// ListUploads returns uploads newest first; a non-nil uploadedBy limits them to one user.
	ListUploads(ctx context.Context, uploadedBy *uuid.UUID) ([]*models.CSVUpload, error)
	DeleteUpload(ctx context.Context, id uuid.UUID) error
	// ListUploadsBefore returns uploads older than cutoff, for retention cleanup.
	ListUploadsBefore(ctx context.Context, cutoff time.Time) ([]*models.CSVUpload, error)

	CreateAnalysis(ctx context.Context, a *models.Analysis) error
	GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, uploadID, createdBy *uuid.UUID) ([]*models.Analysis, error)
	SetAnalysisStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error
	// CompleteAnalysis stores the rendered prompt and result and marks the analysis completed.
	CompleteAnalysis(ctx context.Context, a *models.Analysis) error
	FailStuckAnalyses(ctx context.Context, cutoff time.Time) (int64, error)
}

type csvRepository struct{}

// NewCSVRepository creates a new CSVRepository.
func NewCSVRepository() CSVRepository {
	return &csvRepository{}
}

var _ CSVRepository = (*csvRepository)(nil)

const uploadColumns = `id, file_name, file_path, file_size, row_count, column_count, encoding,
	statistics, uploaded_by, uploaded_at`

const analysisColumns = `id, csv_upload_id, prompt, custom_prompt, prompt_template_id, result,
	model_used, token_count, status, error_message, created_by, created_at, completed_at`

func (r *csvRepository) CreateUpload(ctx context.Context, u *models.CSVUpload) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	stats, err := json.Marshal(u.Statistics)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO csv_uploads (file_name, file_path, file_size, row_count, column_count, encoding, statistics)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, uploaded_by, uploaded_at`,
		u.FileName,
		u.FilePath,
		u.FileSize,
		u.RowCount,
		u.ColumnCount,
		u.Encoding,
		stats,
	).Scan(&u.ID, &u.UploadedBy, &u.UploadedAt)
	return wrapErr("create csv upload", err)
}

func (r *csvRepository) GetUpload(ctx context.Context, id uuid.UUID) (*models.CSVUpload, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	u, err := scanUpload(scope.Conn.QueryRow(ctx, `SELECT `+uploadColumns+` FROM csv_uploads WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get csv upload", err)
	}
	return u, nil
}

func (r *csvRepository) ListUploads(ctx context.Context, uploadedBy *uuid.UUID) ([]*models.CSVUpload, error) {
	var w whereBuilder
	if uploadedBy != nil {
		w.add("uploaded_by = ?", *uploadedBy)
	}
	return r.listUploads(ctx, `SELECT `+uploadColumns+` FROM csv_uploads`+w.sql()+` ORDER BY uploaded_at DESC`, w.args...)
}

func (r *csvRepository) ListUploadsBefore(ctx context.Context, cutoff time.Time) ([]*models.CSVUpload, error) {
	return r.listUploads(ctx, `SELECT `+uploadColumns+` FROM csv_uploads WHERE uploaded_at < $1 ORDER BY uploaded_at`, cutoff)
}

func (r *csvRepository) listUploads(ctx context.Context, query string, args ...any) ([]*models.CSVUpload, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list csv uploads", err)
	}
	defer rows.Close()

	uploads := make([]*models.CSVUpload, 0)
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, wrapErr("scan csv upload", err)
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

func (r *csvRepository) DeleteUpload(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, "delete csv upload", `DELETE FROM csv_uploads WHERE id = $1`, id)
}

func (r *csvRepository) CreateAnalysis(ctx context.Context, a *models.Analysis) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO analyses (csv_upload_id, prompt, custom_prompt, prompt_template_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_by, created_at`,
		a.CSVUploadID,
		a.Prompt,
		a.CustomPrompt,
		a.PromptTemplateID,
		a.Status,
	).Scan(&a.ID, &a.CreatedBy, &a.CreatedAt)
	return wrapErr("create analysis", err)
}

func (r *csvRepository) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	a, err := scanAnalysis(scope.Conn.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get analysis", err)
	}
	return a, nil
}

func (r *csvRepository) ListAnalyses(ctx context.Context, uploadID, createdBy *uuid.UUID) ([]*models.Analysis, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	var w whereBuilder
	if uploadID != nil {
		w.add("csv_upload_id = ?", *uploadID)
	}
	if createdBy != nil {
		w.add("created_by = ?", *createdBy)
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT `+analysisColumns+` FROM analyses`+w.sql()+` ORDER BY created_at DESC`, w.args...)
	if err != nil {
		return nil, wrapErr("list analyses", err)
	}
	defer rows.Close()

	analyses := make([]*models.Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, wrapErr("scan analysis", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

func (r *csvRepository) SetAnalysisStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	return execOne(ctx, "set analysis status", `
		UPDATE analyses
		SET status = $2, error_message = $3,
		    completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN now() ELSE completed_at END
		WHERE id = $1`, id, status, errorMessage)
}

func (r *csvRepository) CompleteAnalysis(ctx context.Context, a *models.Analysis) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		UPDATE analyses
		SET prompt = $2, prompt_template_id = $3, result = $4, model_used = $5, token_count = $6,
		    status = 'completed', error_message = '', completed_at = now()
		WHERE id = $1
		RETURNING status, completed_at`,
		a.ID,
		a.Prompt,
		a.PromptTemplateID,
		a.Result,
		a.ModelUsed,
		a.TokenCount,
	).Scan(&a.Status, &a.CompletedAt)
	return wrapErr("complete analysis", err)
}

func (r *csvRepository) FailStuckAnalyses(ctx context.Context, cutoff time.Time) (int64, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return 0, err
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE analyses
		SET status = 'failed', error_message = 'analysis did not finish', completed_at = now()
		WHERE status IN ('pending', 'processing') AND created_at < $1`, cutoff)
	if err != nil {
		return 0, wrapErr("fail stuck analyses", err)
	}
	return result.RowsAffected(), nil
}

func scanUpload(row pgx.Row) (*models.CSVUpload, error) {
	var u models.CSVUpload
	var stats []byte
	err := row.Scan(
		&u.ID,
		&u.FileName,
		&u.FilePath,
		&u.FileSize,
		&u.RowCount,
		&u.ColumnCount,
		&u.Encoding,
		&stats,
		&u.UploadedBy,
		&u.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(stats) > 0 && string(stats) != "{}" && string(stats) != "null" {
		u.Statistics = &models.CSVStatistics{}
		if err := json.Unmarshal(stats, u.Statistics); err != nil {
			return nil, fmt.Errorf("failed to decode statistics: %w", err)
		}
	}
	return &u, nil
}

func scanAnalysis(row pgx.Row) (*models.Analysis, error) {
	var a models.Analysis
	err := row.Scan(
		&a.ID,
		&a.CSVUploadID,
		&a.Prompt,
		&a.CustomPrompt,
		&a.PromptTemplateID,
		&a.Result,
		&a.ModelUsed,
		&a.TokenCount,
		&a.Status,
		&a.ErrorMessage,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
