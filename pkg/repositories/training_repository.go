package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// TrainingRepository provides data access for training sessions.
type TrainingRepository interface {
	Create(ctx context.Context, s *models.TrainingSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.TrainingSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Stats aggregates a user's sessions. AverageRating is the raw mean and is nil without ratings.
	Stats(ctx context.Context, userID uuid.UUID) (*models.TrainingStats, error)
}

type trainingRepository struct{}

// NewTrainingRepository creates a new TrainingRepository.
func NewTrainingRepository() TrainingRepository {
	return &trainingRepository{}
}

var _ TrainingRepository = (*trainingRepository)(nil)

const trainingColumns = `id, user_id, talk_script_id, duration_minutes, sections_practiced,
	self_rating, notes, created_at`

func (r *trainingRepository) Create(ctx context.Context, s *models.TrainingSession) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO training_sessions (user_id, talk_script_id, duration_minutes,
		                               sections_practiced, self_rating, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		s.UserID,
		s.TalkScriptID,
		s.DurationMinutes,
		nonNil(s.SectionsPracticed),
		s.SelfRating,
		s.Notes,
	).Scan(&s.ID, &s.CreatedAt)
	return wrapErr("create training session", err)
}

func (r *trainingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	s, err := scanTrainingSession(scope.Conn.QueryRow(ctx,
		`SELECT `+trainingColumns+` FROM training_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get training session", err)
	}
	return s, nil
}

func (r *trainingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.TrainingSession, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT `+trainingColumns+`
		FROM training_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, wrapErr("list training sessions", err)
	}
	defer rows.Close()

	sessions := make([]*models.TrainingSession, 0)
	for rows.Next() {
		s, err := scanTrainingSession(rows)
		if err != nil {
			return nil, wrapErr("scan training session", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *trainingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, "delete training session", `DELETE FROM training_sessions WHERE id = $1`, id)
}

func (r *trainingRepository) Stats(ctx context.Context, userID uuid.UUID) (*models.TrainingStats, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.TrainingStats{SessionsPerSection: map[string]int{}}
	err = scope.Conn.QueryRow(ctx, `
		SELECT count(*), coalesce(sum(duration_minutes), 0), avg(self_rating)::float8
		FROM training_sessions
		WHERE user_id = $1`, userID,
	).Scan(&stats.SessionCount, &stats.TotalMinutes, &stats.AverageRating)
	if err != nil {
		return nil, wrapErr("aggregate training sessions", err)
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT section, count(*)
		FROM training_sessions, unnest(sections_practiced) AS section
		WHERE user_id = $1
		GROUP BY section`, userID)
	if err != nil {
		return nil, wrapErr("count practiced sections", err)
	}
	defer rows.Close()

	for rows.Next() {
		var section string
		var n int
		if err := rows.Scan(&section, &n); err != nil {
			return nil, wrapErr("scan section count", err)
		}
		stats.SessionsPerSection[section] = n
	}
	return stats, rows.Err()
}

func scanTrainingSession(row pgx.Row) (*models.TrainingSession, error) {
	var s models.TrainingSession
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TalkScriptID,
		&s.DurationMinutes,
		&s.SectionsPracticed,
		&s.SelfRating,
		&s.Notes,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
