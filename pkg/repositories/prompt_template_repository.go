package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
)

// PromptTemplateRepository provides data access for prompt templates and their version history.
type PromptTemplateRepository interface {
	// Create inserts the template at version 1 together with its first version snapshot.
	Create(ctx context.Context, t *models.PromptTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PromptTemplate, error)
	GetByName(ctx context.Context, name string) (*models.PromptTemplate, error)
	List(ctx context.Context, filter models.PromptTemplateFilter) ([]*models.PromptTemplate, error)
	// Update saves t. When bumpVersion is set the version is incremented and a
	// snapshot with changeSummary is written in the same transaction.
	Update(ctx context.Context, t *models.PromptTemplate, bumpVersion bool, changeSummary string) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListVersions(ctx context.Context, templateID uuid.UUID) ([]*models.PromptVersion, error)
	GetVersion(ctx context.Context, templateID uuid.UUID, version int) (*models.PromptVersion, error)
	// SetDefault makes id the only default of its type.
	SetDefault(ctx context.Context, id uuid.UUID) error
	// FindForType returns the active default of t, else the most recently updated active template.
	FindForType(ctx context.Context, t prompts.TemplateType) (*models.PromptTemplate, error)
}

type promptTemplateRepository struct{}

// NewPromptTemplateRepository creates a new PromptTemplateRepository.
func NewPromptTemplateRepository() PromptTemplateRepository {
	return &promptTemplateRepository{}
}

var _ PromptTemplateRepository = (*promptTemplateRepository)(nil)

const promptTemplateColumns = `id, name, template_type, description, system_prompt, user_prompt_template,
	model_override, temperature_override, version, is_active, is_default,
	created_by, updated_by, created_at, updated_at`

func (r *promptTemplateRepository) Create(ctx context.Context, t *models.PromptTemplate) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	return scope.InTx(ctx, func(tx pgx.Tx) error {
		if t.IsDefault {
			if err := clearDefault(ctx, tx, t.TemplateType, uuid.Nil); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO prompt_templates (name, template_type, description, system_prompt,
			                              user_prompt_template, model_override, temperature_override,
			                              version, is_active, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
			RETURNING id, version, created_by, updated_by, created_at, updated_at`

		err := tx.QueryRow(ctx, query,
			t.Name,
			t.TemplateType,
			t.Description,
			t.SystemPrompt,
			t.UserPromptTemplate,
			t.ModelOverride,
			t.TemperatureOverride,
			t.IsActive,
			t.IsDefault,
		).Scan(&t.ID, &t.Version, &t.CreatedBy, &t.UpdatedBy, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return wrapErr("create prompt template", err)
		}

		return insertVersion(ctx, tx, t.Snapshot("Initial version"))
	})
}

func (r *promptTemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PromptTemplate, error) {
	return r.getOne(ctx, `SELECT `+promptTemplateColumns+` FROM prompt_templates WHERE id = $1`, id)
}

func (r *promptTemplateRepository) GetByName(ctx context.Context, name string) (*models.PromptTemplate, error) {
	return r.getOne(ctx, `SELECT `+promptTemplateColumns+` FROM prompt_templates WHERE name = $1`, name)
}

func (r *promptTemplateRepository) FindForType(ctx context.Context, t prompts.TemplateType) (*models.PromptTemplate, error) {
	return r.getOne(ctx, `
		SELECT `+promptTemplateColumns+`
		FROM prompt_templates
		WHERE template_type = $1 AND is_active
		ORDER BY is_default DESC, updated_at DESC
		LIMIT 1`, t)
}

func (r *promptTemplateRepository) getOne(ctx context.Context, query string, arg any) (*models.PromptTemplate, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanPromptTemplate(scope.Conn.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, wrapErr("get prompt template", err)
	}
	return t, nil
}

func (r *promptTemplateRepository) List(ctx context.Context, filter models.PromptTemplateFilter) ([]*models.PromptTemplate, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	var w whereBuilder
	if filter.Type != "" {
		w.add("template_type = ?", filter.Type)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT `+promptTemplateColumns+` FROM prompt_templates`+w.sql()+` ORDER BY template_type, name`,
		w.args...)
	if err != nil {
		return nil, wrapErr("list prompt templates", err)
	}
	defer rows.Close()

	templates := make([]*models.PromptTemplate, 0)
	for rows.Next() {
		t, err := scanPromptTemplate(rows)
		if err != nil {
			return nil, wrapErr("scan prompt template", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *promptTemplateRepository) Update(ctx context.Context, t *models.PromptTemplate, bumpVersion bool, changeSummary string) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	return scope.InTx(ctx, func(tx pgx.Tx) error {
		if t.IsDefault {
			if err := clearDefault(ctx, tx, t.TemplateType, t.ID); err != nil {
				return err
			}
		}

		bump := 0
		if bumpVersion {
			bump = 1
		}

		query := `
			UPDATE prompt_templates
			SET name = $2, template_type = $3, description = $4, system_prompt = $5,
			    user_prompt_template = $6, model_override = $7, temperature_override = $8,
			    is_active = $9, is_default = $10, version = version + $11,
			    updated_by = current_app_user()
			WHERE id = $1
			RETURNING version, updated_by, updated_at`

		err := tx.QueryRow(ctx, query,
			t.ID,
			t.Name,
			t.TemplateType,
			t.Description,
			t.SystemPrompt,
			t.UserPromptTemplate,
			t.ModelOverride,
			t.TemperatureOverride,
			t.IsActive,
			t.IsDefault,
			bump,
		).Scan(&t.Version, &t.UpdatedBy, &t.UpdatedAt)
		if err != nil {
			return wrapErr("update prompt template", err)
		}

		if !bumpVersion {
			return nil
		}
		return insertVersion(ctx, tx, t.Snapshot(changeSummary))
	})
}

func (r *promptTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM prompt_templates WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete prompt template", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *promptTemplateRepository) ListVersions(ctx context.Context, templateID uuid.UUID) ([]*models.PromptVersion, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, template_id, version, system_prompt, user_prompt_template, model_override,
		       temperature_override, change_summary, created_by, created_at
		FROM prompt_versions
		WHERE template_id = $1
		ORDER BY version DESC`, templateID)
	if err != nil {
		return nil, wrapErr("list prompt versions", err)
	}
	defer rows.Close()

	versions := make([]*models.PromptVersion, 0)
	for rows.Next() {
		v, err := scanPromptVersion(rows)
		if err != nil {
			return nil, wrapErr("scan prompt version", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *promptTemplateRepository) GetVersion(ctx context.Context, templateID uuid.UUID, version int) (*models.PromptVersion, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	v, err := scanPromptVersion(scope.Conn.QueryRow(ctx, `
		SELECT id, template_id, version, system_prompt, user_prompt_template, model_override,
		       temperature_override, change_summary, created_by, created_at
		FROM prompt_versions
		WHERE template_id = $1 AND version = $2`, templateID, version))
	if err != nil {
		return nil, wrapErr("get prompt version", err)
	}
	return v, nil
}

func (r *promptTemplateRepository) SetDefault(ctx context.Context, id uuid.UUID) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	return scope.InTx(ctx, func(tx pgx.Tx) error {
		var templateType prompts.TemplateType
		err := tx.QueryRow(ctx, `SELECT template_type FROM prompt_templates WHERE id = $1 FOR UPDATE`, id).
			Scan(&templateType)
		if err != nil {
			return wrapErr("get prompt template", err)
		}

		if err := clearDefault(ctx, tx, templateType, id); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE prompt_templates
			SET is_default = true, is_active = true, updated_by = current_app_user()
			WHERE id = $1`, id)
		return wrapErr("set default prompt template", err)
	})
}

// clearDefault removes the default flag from every template of t except keep.
func clearDefault(ctx context.Context, q querier, t prompts.TemplateType, keep uuid.UUID) error {
	_, err := q.Exec(ctx, `
		UPDATE prompt_templates SET is_default = false
		WHERE template_type = $1 AND is_default AND id <> $2`, t, keep)
	return wrapErr("clear default prompt template", err)
}

func insertVersion(ctx context.Context, q querier, v *models.PromptVersion) error {
	err := q.QueryRow(ctx, `
		INSERT INTO prompt_versions (template_id, version, system_prompt, user_prompt_template,
		                             model_override, temperature_override, change_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_by, created_at`,
		v.TemplateID,
		v.Version,
		v.SystemPrompt,
		v.UserPromptTemplate,
		v.ModelOverride,
		v.TemperatureOverride,
		v.ChangeSummary,
	).Scan(&v.ID, &v.CreatedBy, &v.CreatedAt)
	return wrapErr("create prompt version", err)
}

func scanPromptTemplate(row pgx.Row) (*models.PromptTemplate, error) {
	var t models.PromptTemplate
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.TemplateType,
		&t.Description,
		&t.SystemPrompt,
		&t.UserPromptTemplate,
		&t.ModelOverride,
		&t.TemperatureOverride,
		&t.Version,
		&t.IsActive,
		&t.IsDefault,
		&t.CreatedBy,
		&t.UpdatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanPromptVersion(row pgx.Row) (*models.PromptVersion, error) {
	var v models.PromptVersion
	err := row.Scan(
		&v.ID,
		&v.TemplateID,
		&v.Version,
		&v.SystemPrompt,
		&v.UserPromptTemplate,
		&v.ModelOverride,
		&v.TemperatureOverride,
		&v.ChangeSummary,
		&v.CreatedBy,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
