package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// TalkScriptRepository provides data access for talk-scripts and their product links.
type TalkScriptRepository interface {
	Create(ctx context.Context, s *models.TalkScript) error
	// GetByID loads the script with its company name and ranked product links.
	GetByID(ctx context.Context, id uuid.UUID) (*models.TalkScript, error)
	List(ctx context.Context, filter models.TalkScriptFilter) ([]*models.TalkScript, int, error)
	// UpdateContent saves edited section text and lifecycle status.
	UpdateContent(ctx context.Context, s *models.TalkScript) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetGenerationStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error
	// MarkRegenerating bumps the version and resets generation to pending.
	// It fails with apperrors.ErrAlreadyProcessing while a generation is running
	// or was queued less than RegenerateGrace ago.
	MarkRegenerating(ctx context.Context, id uuid.UUID, sections []string) (*models.TalkScript, error)
	// SaveGeneration stores generated sections and metrics and marks the script active and completed.
	SaveGeneration(ctx context.Context, id uuid.UUID, gen *models.ScriptGeneration) error
	// ReplaceProductLinks swaps all product links of a script in one transaction.
	ReplaceProductLinks(ctx context.Context, scriptID uuid.UUID, links []*models.ProposalProductLink) error
	ListProductLinks(ctx context.Context, scriptID uuid.UUID) ([]*models.ProposalProductLink, error)
	FailStuck(ctx context.Context, cutoff time.Time) (int64, error)
}

type talkScriptRepository struct{}

// NewTalkScriptRepository creates a new TalkScriptRepository.
func NewTalkScriptRepository() TalkScriptRepository {
	return &talkScriptRepository{}
}

var _ TalkScriptRepository = (*talkScriptRepository)(nil)

// RegenerateGrace is how long a pending script waits for its task before a
// regeneration may replace it. Pending rows outlive their task when the
// process restarts or an enqueue is lost.
const RegenerateGrace = 10 * time.Minute

const talkScriptColumns = `s.id, s.company_id, COALESCE(NULLIF(c.company_name, ''), c.title, ''), s.analysis_id,
	s.template_id, s.script_sections, s.selected_sections, s.pinned_product_ids, s.model_used,
	s.total_tokens, s.generation_time_seconds, s.status, s.generation_status, s.error_message,
	s.version, s.created_by, s.created_at, s.updated_at`

const talkScriptFrom = ` FROM talk_scripts s JOIN companies c ON c.id = s.company_id`

func (r *talkScriptRepository) Create(ctx context.Context, s *models.TalkScript) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	sections, err := marshalSections(s.ScriptSections)
	if err != nil {
		return err
	}
	pinned := s.PinnedProductIDs
	if pinned == nil {
		pinned = []uuid.UUID{}
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO talk_scripts (company_id, analysis_id, template_id, script_sections,
		                          selected_sections, pinned_product_ids, status, generation_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, version, created_by, created_at, updated_at`,
		s.CompanyID,
		s.AnalysisID,
		s.TemplateID,
		sections,
		nonNil(s.SelectedSections),
		pinned,
		s.Status,
		s.GenerationStatus,
	).Scan(&s.ID, &s.Version, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	return wrapErr("create talk script", err)
}

func (r *talkScriptRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TalkScript, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	s, err := scanTalkScript(scope.Conn.QueryRow(ctx, `SELECT `+talkScriptColumns+talkScriptFrom+` WHERE s.id = $1`, id))
	if err != nil {
		return nil, wrapErr("get talk script", err)
	}

	s.Products, err = r.ListProductLinks(ctx, id)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *talkScriptRepository) List(ctx context.Context, filter models.TalkScriptFilter) ([]*models.TalkScript, int, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, 0, err
	}

	var w whereBuilder
	if filter.CompanyID != nil {
		w.add("s.company_id = ?", *filter.CompanyID)
	}
	if filter.CreatedBy != nil {
		w.add("s.created_by = ?", *filter.CreatedBy)
	}
	if filter.Status != "" {
		w.add("s.status = ?", filter.Status)
	}

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT count(*)`+talkScriptFrom+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, wrapErr("count talk scripts", err)
	}

	limit, offset := normalizePageParams(filter.Limit, filter.Offset)
	query := `SELECT ` + talkScriptColumns + talkScriptFrom + w.sql() +
		` ORDER BY s.created_at DESC LIMIT ` + w.next(limit) + ` OFFSET ` + w.next(offset)

	rows, err := scope.Conn.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, wrapErr("list talk scripts", err)
	}
	defer rows.Close()

	scripts := make([]*models.TalkScript, 0)
	for rows.Next() {
		s, err := scanTalkScript(rows)
		if err != nil {
			return nil, 0, wrapErr("scan talk script", err)
		}
		scripts = append(scripts, s)
	}
	return scripts, total, rows.Err()
}

func (r *talkScriptRepository) UpdateContent(ctx context.Context, s *models.TalkScript) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	sections, err := marshalSections(s.ScriptSections)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		UPDATE talk_scripts SET script_sections = $2, status = $3
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, sections, s.Status,
	).Scan(&s.UpdatedAt)
	return wrapErr("update talk script", err)
}

func (r *talkScriptRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, "delete talk script", `DELETE FROM talk_scripts WHERE id = $1`, id)
}

func (r *talkScriptRepository) SetGenerationStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	return execOne(ctx, "set generation status",
		`UPDATE talk_scripts SET generation_status = $2, error_message = $3 WHERE id = $1`,
		id, status, errorMessage)
}

func (r *talkScriptRepository) MarkRegenerating(ctx context.Context, id uuid.UUID, sections []string) (*models.TalkScript, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE talk_scripts
		SET generation_status = 'pending', error_message = '', version = version + 1,
		    selected_sections = $2
		WHERE id = $1
		  AND generation_status <> 'processing'
		  AND (generation_status <> 'pending' OR updated_at < now() - make_interval(secs => $3))`,
		id, nonNil(sections), RegenerateGrace.Seconds())
	if err != nil {
		return nil, wrapErr("mark talk script for regeneration", err)
	}
	if result.RowsAffected() == 0 {
		// Either the script does not exist or a generation is in flight or freshly queued.
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrAlreadyProcessing
	}
	return r.GetByID(ctx, id)
}

func (r *talkScriptRepository) SaveGeneration(ctx context.Context, id uuid.UUID, gen *models.ScriptGeneration) error {
	sections, err := marshalSections(gen.Sections)
	if err != nil {
		return err
	}

	return execOne(ctx, "save talk script generation", `
		UPDATE talk_scripts
		SET script_sections = $2, model_used = $3, total_tokens = $4, generation_time_seconds = $5,
		    status = 'active', generation_status = 'completed', error_message = ''
		WHERE id = $1`,
		id, sections, gen.ModelUsed, gen.TotalTokens, gen.GenerationTimeSeconds)
}

func (r *talkScriptRepository) ReplaceProductLinks(ctx context.Context, scriptID uuid.UUID, links []*models.ProposalProductLink) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	return scope.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM proposal_product_links WHERE talk_script_id = $1`, scriptID); err != nil {
			return wrapErr("clear product links", err)
		}

		for i, link := range links {
			link.TalkScriptID = scriptID
			link.ProposalOrder = i + 1
			err := tx.QueryRow(ctx, `
				INSERT INTO proposal_product_links (talk_script_id, product_id, relevance_score,
				                                    matching_reasons, proposal_angle, proposal_order)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id, created_at`,
				scriptID,
				link.ProductID,
				link.RelevanceScore,
				nonNil(link.MatchingReasons),
				link.ProposalAngle,
				link.ProposalOrder,
			).Scan(&link.ID, &link.CreatedAt)
			if err != nil {
				return wrapErr("create product link", err)
			}
		}
		return nil
	})
}

func (r *talkScriptRepository) ListProductLinks(ctx context.Context, scriptID uuid.UUID) ([]*models.ProposalProductLink, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT l.id, l.talk_script_id, l.product_id, p.name, l.relevance_score, l.matching_reasons,
		       l.proposal_angle, l.proposal_order, l.created_at
		FROM proposal_product_links l
		JOIN products p ON p.id = l.product_id
		WHERE l.talk_script_id = $1
		ORDER BY l.proposal_order`, scriptID)
	if err != nil {
		return nil, wrapErr("list product links", err)
	}
	defer rows.Close()

	links := make([]*models.ProposalProductLink, 0)
	for rows.Next() {
		var l models.ProposalProductLink
		if err := rows.Scan(&l.ID, &l.TalkScriptID, &l.ProductID, &l.ProductName, &l.RelevanceScore,
			&l.MatchingReasons, &l.ProposalAngle, &l.ProposalOrder, &l.CreatedAt); err != nil {
			return nil, wrapErr("scan product link", err)
		}
		links = append(links, &l)
	}
	return links, rows.Err()
}

func (r *talkScriptRepository) FailStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return 0, err
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE talk_scripts
		SET generation_status = 'failed', error_message = 'generation did not finish'
		WHERE generation_status IN ('pending', 'processing') AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, wrapErr("fail stuck talk scripts", err)
	}
	return result.RowsAffected(), nil
}

func marshalSections(sections map[string]string) ([]byte, error) {
	if sections == nil {
		sections = map[string]string{}
	}
	b, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("failed to encode script sections: %w", err)
	}
	return b, nil
}

func scanTalkScript(row pgx.Row) (*models.TalkScript, error) {
	var s models.TalkScript
	var sections []byte
	err := row.Scan(
		&s.ID,
		&s.CompanyID,
		&s.CompanyName,
		&s.AnalysisID,
		&s.TemplateID,
		&sections,
		&s.SelectedSections,
		&s.PinnedProductIDs,
		&s.ModelUsed,
		&s.TotalTokens,
		&s.GenerationTimeSeconds,
		&s.Status,
		&s.GenerationStatus,
		&s.ErrorMessage,
		&s.Version,
		&s.CreatedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.ScriptSections = map[string]string{}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &s.ScriptSections); err != nil {
			return nil, fmt.Errorf("failed to decode script sections: %w", err)
		}
	}
	return &s, nil
}
