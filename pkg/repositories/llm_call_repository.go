package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// LLMCallRepository stores the LLM call audit trail.
type LLMCallRepository interface {
	// Create inserts a call with its client-generated ID.
	Create(ctx context.Context, call *models.LLMCall) error
	// Complete stores the reply, usage and final status of a call.
	Complete(ctx context.Context, call *models.LLMCall) error
	List(ctx context.Context, filter models.LLMCallFilter) ([]*models.LLMCall, error)
	// Summarize totals the calls recorded for one resource.
	Summarize(ctx context.Context, resourceType, resourceID string) (*models.LLMCallSummary, error)
	// FailStuck marks calls still pending since before cutoff as errors.
	FailStuck(ctx context.Context, cutoff time.Time) (int64, error)
	// DeleteBefore removes calls created before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type llmCallRepository struct{}

// NewLLMCallRepository creates a new LLMCallRepository.
func NewLLMCallRepository() LLMCallRepository {
	return &llmCallRepository{}
}

var _ LLMCallRepository = (*llmCallRepository)(nil)

const llmCallColumns = `id, user_id, provider, model, purpose, resource_type, resource_id, section,
	system_message, prompt, temperature, response, prompt_tokens, completion_tokens, total_tokens,
	duration_ms, status, error_message, created_at, completed_at`

func (r *llmCallRepository) Create(ctx context.Context, call *models.LLMCall) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}
	if call.ID == uuid.Nil {
		call.ID = uuid.New()
	}
	if call.Status == "" {
		call.Status = models.LLMCallPending
	}

	query := `
		INSERT INTO llm_calls (id, user_id, provider, model, purpose, resource_type, resource_id, section,
			system_message, prompt, temperature, response, prompt_tokens, completion_tokens, total_tokens,
			duration_ms, status, error_message, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at`

	err = scope.Conn.QueryRow(ctx, query,
		call.ID,
		call.UserID,
		call.Provider,
		call.Model,
		call.Purpose,
		call.ResourceType,
		call.ResourceID,
		call.Section,
		call.SystemMessage,
		call.Prompt,
		call.Temperature,
		call.Response,
		call.PromptTokens,
		call.CompletionTokens,
		call.TotalTokens,
		call.DurationMs,
		call.Status,
		call.ErrorMessage,
		call.CompletedAt,
	).Scan(&call.CreatedAt)
	return wrapErr("create llm call", err)
}

func (r *llmCallRepository) Complete(ctx context.Context, call *models.LLMCall) error {
	return execOne(ctx, "complete llm call", `
		UPDATE llm_calls
		SET model = $2, response = $3, prompt_tokens = $4, completion_tokens = $5, total_tokens = $6,
		    duration_ms = $7, status = $8, error_message = $9, completed_at = $10
		WHERE id = $1`,
		call.ID,
		call.Model,
		call.Response,
		call.PromptTokens,
		call.CompletionTokens,
		call.TotalTokens,
		call.DurationMs,
		call.Status,
		call.ErrorMessage,
		call.CompletedAt,
	)
}

func (r *llmCallRepository) List(ctx context.Context, filter models.LLMCallFilter) ([]*models.LLMCall, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	var w whereBuilder
	if filter.ResourceType != "" {
		w.add("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		w.add("resource_id = ?", filter.ResourceID)
	}
	if filter.Purpose != "" {
		w.add("purpose = ?", filter.Purpose)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	limit, _ := normalizePageParams(filter.Limit, 0)

	query := `SELECT ` + llmCallColumns + ` FROM llm_calls` + w.sql() + `
		ORDER BY created_at DESC
		LIMIT ` + w.next(limit)

	rows, err := scope.Conn.Query(ctx, query, w.args...)
	if err != nil {
		return nil, wrapErr("list llm calls", err)
	}
	defer rows.Close()

	calls := make([]*models.LLMCall, 0)
	for rows.Next() {
		var c models.LLMCall
		if err := rows.Scan(&c.ID, &c.UserID, &c.Provider, &c.Model, &c.Purpose, &c.ResourceType,
			&c.ResourceID, &c.Section, &c.SystemMessage, &c.Prompt, &c.Temperature, &c.Response,
			&c.PromptTokens, &c.CompletionTokens, &c.TotalTokens, &c.DurationMs, &c.Status,
			&c.ErrorMessage, &c.CreatedAt, &c.CompletedAt); err != nil {
			return nil, wrapErr("scan llm call", err)
		}
		calls = append(calls, &c)
	}
	return calls, rows.Err()
}

func (r *llmCallRepository) Summarize(ctx context.Context, resourceType, resourceID string) (*models.LLMCallSummary, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	var s models.LLMCallSummary
	err = scope.Conn.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'error'),
		       COALESCE(sum(total_tokens), 0)
		FROM llm_calls
		WHERE resource_type = $1 AND resource_id = $2`, resourceType, resourceID,
	).Scan(&s.Calls, &s.Failed, &s.TotalTokens)
	if err != nil {
		return nil, wrapErr("summarize llm calls", err)
	}
	return &s, nil
}

func (r *llmCallRepository) FailStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return 0, err
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE llm_calls
		SET status = 'error', error_message = 'call did not complete', completed_at = now()
		WHERE status = 'pending' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, wrapErr("fail stuck llm calls", err)
	}
	return result.RowsAffected(), nil
}

func (r *llmCallRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return 0, err
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM llm_calls WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, wrapErr("delete old llm calls", err)
	}
	return result.RowsAffected(), nil
}
