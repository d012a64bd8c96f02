package models

import (
	"time"

	"github.com/google/uuid"
)

// Activity actions.
const (
	ActionLogin    = "login"
	ActionLogout   = "logout"
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionView     = "view"
	ActionDownload = "download"
)

// ActivityLog records one user action.
type ActivityLog struct {
	ID         uuid.UUID  `json:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	Username   string     `json:"username,omitempty"`
	Action     string     `json:"action"`
	TargetType string     `json:"target_type"`
	TargetID   string     `json:"target_id"`
	Summary    string     `json:"summary"`
	IPAddress  *string    `json:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ActivityLogFilter narrows an activity log listing. Zero values match everything.
type ActivityLogFilter struct {
	UserID     *uuid.UUID
	Action     string
	TargetType string
	Limit      int
}
