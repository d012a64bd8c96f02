package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// ExportRepository provides data access for talk-script export history.
type ExportRepository interface {
	Create(ctx context.Context, e *models.ExportHistory) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExportHistory, error)
	// List returns exports newest first; a non-nil createdBy limits them to one user.
	List(ctx context.Context, createdBy *uuid.UUID) ([]*models.ExportHistory, error)
	SetStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error
	// Complete records the written file and marks the export completed.
	Complete(ctx context.Context, id uuid.UUID, path string, size int64) error
	FailStuck(ctx context.Context, cutoff time.Time) (int64, error)
}

type exportRepository struct{}

// NewExportRepository creates a new ExportRepository.
func NewExportRepository() ExportRepository {
	return &exportRepository{}
}

var _ ExportRepository = (*exportRepository)(nil)

const exportColumns = `id, talk_script_id, export_type, file_path, file_size, status,
	error_message, created_by, created_at, completed_at`

func (r *exportRepository) Create(ctx context.Context, e *models.ExportHistory) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO export_history (talk_script_id, export_type, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_by, created_at`,
		e.TalkScriptID, e.ExportType, e.Status,
	).Scan(&e.ID, &e.CreatedBy, &e.CreatedAt)
	return wrapErr("create export", err)
}

func (r *exportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ExportHistory, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	e, err := scanExport(scope.Conn.QueryRow(ctx,
		`SELECT `+exportColumns+` FROM export_history WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get export", err)
	}
	return e, nil
}

func (r *exportRepository) List(ctx context.Context, createdBy *uuid.UUID) ([]*models.ExportHistory, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	var w whereBuilder
	if createdBy != nil {
		w.add("created_by = ?", *createdBy)
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT `+exportColumns+` FROM export_history`+w.sql()+` ORDER BY created_at DESC`, w.args...)
	if err != nil {
		return nil, wrapErr("list exports", err)
	}
	defer rows.Close()

	exports := make([]*models.ExportHistory, 0)
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, wrapErr("scan export", err)
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}

func (r *exportRepository) SetStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	return execOne(ctx, "set export status", `
		UPDATE export_history
		SET status = $2, error_message = $3,
		    completed_at = CASE WHEN $2 = 'failed' THEN now() ELSE completed_at END
		WHERE id = $1`,
		id, status, errorMessage)
}

func (r *exportRepository) Complete(ctx context.Context, id uuid.UUID, path string, size int64) error {
	return execOne(ctx, "complete export", `
		UPDATE export_history
		SET status = 'completed', file_path = $2, file_size = $3, error_message = '', completed_at = now()
		WHERE id = $1`,
		id, path, size)
}

func (r *exportRepository) FailStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return 0, err
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE export_history
		SET status = 'failed', error_message = 'export did not finish', completed_at = now()
		WHERE status IN ('pending', 'processing') AND created_at < $1`, cutoff)
	if err != nil {
		return 0, wrapErr("fail stuck exports", err)
	}
	return result.RowsAffected(), nil
}

func scanExport(row pgx.Row) (*models.ExportHistory, error) {
	var e models.ExportHistory
	err := row.Scan(
		&e.ID,
		&e.TalkScriptID,
		&e.ExportType,
		&e.FilePath,
		&e.FileSize,
		&e.Status,
		&e.ErrorMessage,
		&e.CreatedBy,
		&e.CreatedAt,
		&e.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
