package models

import (
	"time"

	"github.com/google/uuid"
)

// Talk-script lifecycle status, independent of generation status.
const (
	ScriptStatusDraft    = "draft"
	ScriptStatusActive   = "active"
	ScriptStatusArchived = "archived"
)

// IsValidScriptStatus reports whether s is a known talk-script status.
func IsValidScriptStatus(s string) bool {
	return s == ScriptStatusDraft || s == ScriptStatusActive || s == ScriptStatusArchived
}

// TalkScript is a generated sales dialogue for one company.
type TalkScript struct {
	ID                    uuid.UUID              `json:"id"`
	CompanyID             uuid.UUID              `json:"company_id"`
	CompanyName           string                 `json:"company_name,omitempty"`
	AnalysisID            *uuid.UUID             `json:"analysis_id,omitempty"`
	TemplateID            *uuid.UUID             `json:"template_id,omitempty"`
	ScriptSections        map[string]string      `json:"script_sections"`
	SelectedSections      []string               `json:"selected_sections"`
	PinnedProductIDs      []uuid.UUID            `json:"pinned_product_ids,omitempty"`
	ModelUsed             string                 `json:"model_used"`
	TotalTokens           int                    `json:"total_tokens"`
	GenerationTimeSeconds float64                `json:"generation_time_seconds"`
	Status                string                 `json:"status"`
	GenerationStatus      string                 `json:"generation_status"`
	ErrorMessage          string                 `json:"error_message,omitempty"`
	Version               int                    `json:"version"`
	CreatedBy             *uuid.UUID             `json:"created_by,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
	Products              []*ProposalProductLink `json:"products,omitempty"`
}

// IsOwnedBy reports whether userID created the script.
func (s *TalkScript) IsOwnedBy(userID uuid.UUID) bool {
	return s.CreatedBy != nil && *s.CreatedBy == userID
}

// ProposalProductLink ranks a product proposed in a talk-script.
type ProposalProductLink struct {
	ID              uuid.UUID `json:"id"`
	TalkScriptID    uuid.UUID `json:"talk_script_id"`
	ProductID       uuid.UUID `json:"product_id"`
	ProductName     string    `json:"product_name,omitempty"`
	RelevanceScore  float64   `json:"relevance_score"`
	MatchingReasons []string  `json:"matching_reasons"`
	ProposalAngle   string    `json:"proposal_angle"`
	ProposalOrder   int       `json:"proposal_order"`
	CreatedAt       time.Time `json:"created_at"`
}

// TalkScriptFilter narrows a talk-script listing.
type TalkScriptFilter struct {
	CompanyID *uuid.UUID
	CreatedBy *uuid.UUID
	Status    string
	Limit     int
	Offset    int
}

// ScriptGeneration is the result of one generation run, persisted in a single update.
type ScriptGeneration struct {
	Sections              map[string]string
	ModelUsed             string
	TotalTokens           int
	GenerationTimeSeconds float64
}
