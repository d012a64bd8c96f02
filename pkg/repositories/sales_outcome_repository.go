package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// topObjectionLimit caps the objections returned with outcome stats.
const topObjectionLimit = 5

// SalesOutcomeRepository provides data access for recorded sales outcomes.
type SalesOutcomeRepository interface {
	Create(ctx context.Context, o *models.SalesOutcome) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SalesOutcome, error)
	List(ctx context.Context, filter models.SalesOutcomeFilter) ([]*models.SalesOutcome, error)
	Update(ctx context.Context, o *models.SalesOutcome) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListTrainingOutcomes returns the newest outcomes flagged for training whose
	// talk-script targets a company in industry.
	ListTrainingOutcomes(ctx context.Context, industry, outcome string, limit int) ([]*models.SalesOutcome, error)
	// Stats counts outcomes per value and the most frequent objections. SuccessRate is left to the caller.
	Stats(ctx context.Context, filter models.SalesOutcomeFilter) (*models.OutcomeStats, error)
}

type salesOutcomeRepository struct{}

// NewSalesOutcomeRepository creates a new SalesOutcomeRepository.
func NewSalesOutcomeRepository() SalesOutcomeRepository {
	return &salesOutcomeRepository{}
}

var _ SalesOutcomeRepository = (*salesOutcomeRepository)(nil)

const outcomeColumns = `o.id, o.talk_script_id, o.outcome, o.what_worked, o.what_didnt_work,
	o.customer_objections, o.meeting_date, o.notes, o.used_for_training, o.recorded_by,
	o.created_at, o.updated_at`

func (r *salesOutcomeRepository) Create(ctx context.Context, o *models.SalesOutcome) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO sales_outcomes (talk_script_id, outcome, what_worked, what_didnt_work,
		                            customer_objections, meeting_date, notes, used_for_training)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, recorded_by, created_at, updated_at`,
		o.TalkScriptID,
		o.Outcome,
		o.WhatWorked,
		o.WhatDidntWork,
		nonNil(o.CustomerObjections),
		o.MeetingDate,
		o.Notes,
		o.UsedForTraining,
	).Scan(&o.ID, &o.RecordedBy, &o.CreatedAt, &o.UpdatedAt)
	return wrapErr("create sales outcome", err)
}

func (r *salesOutcomeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SalesOutcome, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	o, err := scanOutcome(scope.Conn.QueryRow(ctx,
		`SELECT `+outcomeColumns+` FROM sales_outcomes o WHERE o.id = $1`, id))
	if err != nil {
		return nil, wrapErr("get sales outcome", err)
	}
	return o, nil
}

func (r *salesOutcomeRepository) List(ctx context.Context, filter models.SalesOutcomeFilter) ([]*models.SalesOutcome, error) {
	w := outcomeWhere(filter)
	query := `SELECT ` + outcomeColumns + `
		FROM sales_outcomes o
		JOIN talk_scripts s ON s.id = o.talk_script_id` + w.sql() + `
		ORDER BY o.created_at DESC`
	return r.query(ctx, "list sales outcomes", query, w.args...)
}

func (r *salesOutcomeRepository) Update(ctx context.Context, o *models.SalesOutcome) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		UPDATE sales_outcomes
		SET outcome = $2, what_worked = $3, what_didnt_work = $4, customer_objections = $5,
		    meeting_date = $6, notes = $7, used_for_training = $8
		WHERE id = $1
		RETURNING updated_at`,
		o.ID,
		o.Outcome,
		o.WhatWorked,
		o.WhatDidntWork,
		nonNil(o.CustomerObjections),
		o.MeetingDate,
		o.Notes,
		o.UsedForTraining,
	).Scan(&o.UpdatedAt)
	return wrapErr("update sales outcome", err)
}

func (r *salesOutcomeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, "delete sales outcome", `DELETE FROM sales_outcomes WHERE id = $1`, id)
}

func (r *salesOutcomeRepository) ListTrainingOutcomes(ctx context.Context, industry, outcome string, limit int) ([]*models.SalesOutcome, error) {
	query := `SELECT ` + outcomeColumns + `
		FROM sales_outcomes o
		JOIN talk_scripts s ON s.id = o.talk_script_id
		JOIN companies c ON c.id = s.company_id
		WHERE o.used_for_training AND o.outcome = $1 AND c.industry = $2
		ORDER BY o.created_at DESC
		LIMIT $3`
	return r.query(ctx, "list training outcomes", query, outcome, industry, limit)
}

func (r *salesOutcomeRepository) Stats(ctx context.Context, filter models.SalesOutcomeFilter) (*models.OutcomeStats, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	w := outcomeWhere(filter)
	from := ` FROM sales_outcomes o JOIN talk_scripts s ON s.id = o.talk_script_id` + w.sql()

	rows, err := scope.Conn.Query(ctx, `SELECT o.outcome, count(*)`+from+` GROUP BY o.outcome`, w.args...)
	if err != nil {
		return nil, wrapErr("count sales outcomes", err)
	}
	defer rows.Close()

	stats := &models.OutcomeStats{
		ByOutcome:     map[string]int{},
		TopObjections: []models.ObjectionCount{},
	}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, wrapErr("scan outcome count", err)
		}
		stats.ByOutcome[outcome] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("count sales outcomes", err)
	}
	rows.Close()

	objections, err := scope.Conn.Query(ctx, `
		SELECT objection, count(*) AS n
		FROM (SELECT unnest(o.customer_objections) AS objection`+from+`) t
		WHERE objection <> ''
		GROUP BY objection
		ORDER BY n DESC, objection
		LIMIT `+w.next(topObjectionLimit), w.args...)
	if err != nil {
		return nil, wrapErr("count objections", err)
	}
	defer objections.Close()

	for objections.Next() {
		var oc models.ObjectionCount
		if err := objections.Scan(&oc.Objection, &oc.Count); err != nil {
			return nil, wrapErr("scan objection count", err)
		}
		stats.TopObjections = append(stats.TopObjections, oc)
	}
	return stats, objections.Err()
}

func (r *salesOutcomeRepository) query(ctx context.Context, op, query string, args ...any) ([]*models.SalesOutcome, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	outcomes := make([]*models.SalesOutcome, 0)
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, wrapErr("scan sales outcome", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// outcomeWhere expects sales_outcomes aliased o and talk_scripts aliased s.
func outcomeWhere(filter models.SalesOutcomeFilter) *whereBuilder {
	w := &whereBuilder{}
	if filter.TalkScriptID != nil {
		w.add("o.talk_script_id = ?", *filter.TalkScriptID)
	}
	if filter.ScriptOwner != nil {
		w.add("s.created_by = ?", *filter.ScriptOwner)
	}
	if filter.Outcome != "" {
		w.add("o.outcome = ?", filter.Outcome)
	}
	return w
}

func scanOutcome(row pgx.Row) (*models.SalesOutcome, error) {
	var o models.SalesOutcome
	err := row.Scan(
		&o.ID,
		&o.TalkScriptID,
		&o.Outcome,
		&o.WhatWorked,
		&o.WhatDidntWork,
		&o.CustomerObjections,
		&o.MeetingDate,
		&o.Notes,
		&o.UsedForTraining,
		&o.RecordedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
