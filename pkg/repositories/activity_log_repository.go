package repositories

import (
	"context"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// ActivityLogRepository stores the user activity trail.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter models.ActivityLogFilter) ([]*models.ActivityLog, error)
}

type activityLogRepository struct{}

// NewActivityLogRepository creates a new ActivityLogRepository.
func NewActivityLogRepository() ActivityLogRepository {
	return &activityLogRepository{}
}

var _ ActivityLogRepository = (*activityLogRepository)(nil)

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO activity_logs (user_id, action, target_type, target_id, summary, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err = scope.Conn.QueryRow(ctx, query,
		entry.UserID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Summary,
		entry.IPAddress,
		entry.UserAgent,
	).Scan(&entry.ID, &entry.CreatedAt)
	return wrapErr("create activity log", err)
}

func (r *activityLogRepository) List(ctx context.Context, filter models.ActivityLogFilter) ([]*models.ActivityLog, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	var w whereBuilder
	if filter.UserID != nil {
		w.add("a.user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		w.add("a.action = ?", filter.Action)
	}
	if filter.TargetType != "" {
		w.add("a.target_type = ?", filter.TargetType)
	}
	limit, _ := normalizePageParams(filter.Limit, 0)

	query := `
		SELECT a.id, a.user_id, COALESCE(u.username, ''), a.action, a.target_type, a.target_id,
		       a.summary, a.ip_address, a.user_agent, a.created_at
		FROM activity_logs a
		LEFT JOIN users u ON u.id = a.user_id` + w.sql() + `
		ORDER BY a.created_at DESC
		LIMIT ` + w.next(limit)

	rows, err := scope.Conn.Query(ctx, query, w.args...)
	if err != nil {
		return nil, wrapErr("list activity logs", err)
	}
	defer rows.Close()

	entries := make([]*models.ActivityLog, 0)
	for rows.Next() {
		var e models.ActivityLog
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.Action, &e.TargetType, &e.TargetID,
			&e.Summary, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, wrapErr("scan activity log", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
