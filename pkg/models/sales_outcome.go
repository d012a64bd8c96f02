package models

import (
	"time"

	"github.com/google/uuid"
)

// Sales outcome values.
const (
	OutcomeWon        = "won"
	OutcomeLost       = "lost"
	OutcomePending    = "pending"
	OutcomeNoResponse = "no_response"
)

// IsValidOutcome reports whether o is a known outcome.
func IsValidOutcome(o string) bool {
	switch o {
	case OutcomeWon, OutcomeLost, OutcomePending, OutcomeNoResponse:
		return true
	}
	return false
}

// SalesOutcome records how a meeting that used a talk-script went.
type SalesOutcome struct {
	ID                 uuid.UUID  `json:"id"`
	TalkScriptID       uuid.UUID  `json:"talk_script_id"`
	Outcome            string     `json:"outcome"`
	WhatWorked         string     `json:"what_worked"`
	WhatDidntWork      string     `json:"what_didnt_work"`
	CustomerObjections []string   `json:"customer_objections"`
	MeetingDate        *time.Time `json:"meeting_date,omitempty"`
	Notes              string     `json:"notes"`
	UsedForTraining    bool       `json:"used_for_training"`
	RecordedBy         *uuid.UUID `json:"recorded_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// SalesOutcomeFilter narrows an outcome listing.
type SalesOutcomeFilter struct {
	TalkScriptID *uuid.UUID
	// ScriptOwner limits results to outcomes of scripts created by this user.
	ScriptOwner *uuid.UUID
	Outcome     string
}

// ObjectionCount is how often an objection was recorded.
type ObjectionCount struct {
	Objection string `json:"objection"`
	Count     int    `json:"count"`
}

// OutcomeStats summarises recorded outcomes.
type OutcomeStats struct {
	Total         int              `json:"total"`
	ByOutcome     map[string]int   `json:"by_outcome"`
	SuccessRate   float64          `json:"success_rate"`
	TopObjections []ObjectionCount `json:"top_objections"`
}
