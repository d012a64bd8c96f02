package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
)

// PromptTemplate is a stored, versioned prompt.
type PromptTemplate struct {
	ID                  uuid.UUID            `json:"id"`
	Name                string               `json:"name"`
	TemplateType        prompts.TemplateType `json:"template_type"`
	Description         string               `json:"description"`
	SystemPrompt        string               `json:"system_prompt"`
	UserPromptTemplate  string               `json:"user_prompt_template"`
	ModelOverride       *string              `json:"model_override,omitempty"`
	TemperatureOverride *float64             `json:"temperature_override,omitempty"`
	Version             int                  `json:"version"`
	IsActive            bool                 `json:"is_active"`
	IsDefault           bool                 `json:"is_default"`
	CreatedBy           *uuid.UUID           `json:"created_by,omitempty"`
	UpdatedBy           *uuid.UUID           `json:"updated_by,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// Variables lists the placeholders used by the system prompt and user template.
func (t *PromptTemplate) Variables() []string {
	return prompts.Variables(t.SystemPrompt + "\n" + t.UserPromptTemplate)
}

// Snapshot captures the versioned content of t.
func (t *PromptTemplate) Snapshot(changeSummary string) *PromptVersion {
	return &PromptVersion{
		TemplateID:          t.ID,
		Version:             t.Version,
		SystemPrompt:        t.SystemPrompt,
		UserPromptTemplate:  t.UserPromptTemplate,
		ModelOverride:       t.ModelOverride,
		TemperatureOverride: t.TemperatureOverride,
		ChangeSummary:       changeSummary,
	}
}

// PromptVersion is a historical snapshot of a template's content.
type PromptVersion struct {
	ID                  uuid.UUID  `json:"id"`
	TemplateID          uuid.UUID  `json:"template_id"`
	Version             int        `json:"version"`
	SystemPrompt        string     `json:"system_prompt"`
	UserPromptTemplate  string     `json:"user_prompt_template"`
	ModelOverride       *string    `json:"model_override,omitempty"`
	TemperatureOverride *float64   `json:"temperature_override,omitempty"`
	ChangeSummary       string     `json:"change_summary"`
	CreatedBy           *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// PromptTemplateFilter narrows a template listing.
type PromptTemplateFilter struct {
	Type       prompts.TemplateType
	ActiveOnly bool
}

// ResolvedPrompt is a template selected and rendered for one LLM call.
type ResolvedPrompt struct {
	TemplateID  *uuid.UUID `json:"template_id,omitempty"`
	Source      string     `json:"source"` // default, latest or builtin
	System      string     `json:"system"`
	User        string     `json:"user"`
	Model       string     `json:"model"`
	Temperature float64    `json:"temperature"`
	MaxTokens   int        `json:"max_tokens"`
}

// Prompt sources reported by ResolvedPrompt.
const (
	PromptSourceDefault = "default"
	PromptSourceLatest  = "latest"
	PromptSourceBuiltin = "builtin"
)

// PromptPreview is the result of rendering a template with sample variables.
type PromptPreview struct {
	SystemPrompt     string   `json:"system_prompt"`
	UserPrompt       string   `json:"user_prompt"`
	Variables        []string `json:"variables"`
	MissingVariables []string `json:"missing_variables"`
}
