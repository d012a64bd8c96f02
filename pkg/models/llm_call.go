package models

import (
	"time"

	"github.com/google/uuid"
)

// LLM call statuses.
const (
	LLMCallPending = "pending"
	LLMCallSuccess = "success"
	LLMCallError   = "error"
)

// LLMCall is one recorded completion request and its outcome.
type LLMCall struct {
	ID               uuid.UUID  `json:"id"`
	UserID           *uuid.UUID `json:"user_id,omitempty"`
	Provider         string     `json:"provider"`
	Model            string     `json:"model"`
	Purpose          string     `json:"purpose"`
	ResourceType     string     `json:"resource_type"`
	ResourceID       string     `json:"resource_id"`
	Section          string     `json:"section,omitempty"`
	SystemMessage    string     `json:"system_message"`
	Prompt           string     `json:"prompt"`
	Temperature      *float64   `json:"temperature,omitempty"`
	Response         string     `json:"response"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
	TotalTokens      int        `json:"total_tokens"`
	DurationMs       int        `json:"duration_ms"`
	Status           string     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// LLMCallFilter narrows an LLM call listing. Zero values match everything.
type LLMCallFilter struct {
	ResourceType string
	ResourceID   string
	Purpose      string
	Status       string
	Limit        int
}

// LLMCallSummary totals the calls made for one resource.
type LLMCallSummary struct {
	Calls       int `json:"calls"`
	Failed      int `json:"failed"`
	TotalTokens int `json:"total_tokens"`
}
