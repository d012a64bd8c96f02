package models

import (
	"time"

	"github.com/google/uuid"
)

// TrainingSession records a user rehearsing a talk-script.
type TrainingSession struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	TalkScriptID      *uuid.UUID `json:"talk_script_id,omitempty"`
	DurationMinutes   int        `json:"duration_minutes"`
	SectionsPracticed []string   `json:"sections_practiced"`
	SelfRating        *int       `json:"self_rating,omitempty"`
	Notes             string     `json:"notes"`
	CreatedAt         time.Time  `json:"created_at"`
}

// TrainingStats summarises one user's training sessions.
type TrainingStats struct {
	SessionCount       int            `json:"session_count"`
	TotalMinutes       int            `json:"total_minutes"`
	AverageRating      *float64       `json:"average_rating"`
	SessionsPerSection map[string]int `json:"sessions_per_section"`
}
