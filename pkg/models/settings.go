package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Supported CSV encodings.
const (
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift_jis"
)

// SystemSettings is the singleton configuration row edited by administrators.
type SystemSettings struct {
	MaxCSVFileSizeMB          int        `json:"max_csv_file_size_mb"`
	AllowedCSVEncodings       []string   `json:"allowed_csv_encodings"`
	OpenAIAPIKey              string     `json:"openai_api_key"`
	DefaultAIModel            string     `json:"default_ai_model"`
	AITemperature             float64    `json:"ai_temperature"`
	MaxTokensPerRequest       int        `json:"max_tokens_per_request"`
	DailyTokenLimit           int        `json:"daily_token_limit"`
	AIEnabled                 bool       `json:"ai_enabled"`
	MaxPDFFileSizeMB          int        `json:"max_pdf_file_size_mb"`
	PDFProcessingEnabled      bool       `json:"pdf_processing_enabled"`
	SessionTimeoutMinutes     int        `json:"session_timeout_minutes"`
	MaxLoginAttempts          int        `json:"max_login_attempts"`
	LockoutDurationMinutes    int        `json:"lockout_duration_minutes"`
	EmailNotificationsEnabled bool       `json:"email_notifications_enabled"`
	NotificationEmail         string     `json:"notification_email"`
	MaintenanceMode           bool       `json:"maintenance_mode"`
	MaintenanceMessage        string     `json:"maintenance_message"`
	SystemAnnouncement        string     `json:"system_announcement"`
	UpdatedBy                 *uuid.UUID `json:"updated_by,omitempty"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// DefaultSystemSettings returns the values a fresh installation starts with.
func DefaultSystemSettings() *SystemSettings {
	return &SystemSettings{
		MaxCSVFileSizeMB:       10,
		AllowedCSVEncodings:    []string{EncodingUTF8, EncodingShiftJIS},
		DefaultAIModel:         "gpt-4o",
		AITemperature:          0.7,
		MaxTokensPerRequest:    4000,
		DailyTokenLimit:        1000000,
		AIEnabled:              true,
		MaxPDFFileSizeMB:       20,
		PDFProcessingEnabled:   true,
		SessionTimeoutMinutes:  60,
		MaxLoginAttempts:       5,
		LockoutDurationMinutes: 30,
	}
}

// MaxCSVBytes returns the CSV upload limit in bytes.
func (s *SystemSettings) MaxCSVBytes() int64 {
	return int64(s.MaxCSVFileSizeMB) * 1024 * 1024
}

// LockoutDuration returns how long an account stays locked.
func (s *SystemSettings) LockoutDuration() time.Duration {
	return time.Duration(s.LockoutDurationMinutes) * time.Minute
}

// SessionTimeout returns the browser session lifetime.
func (s *SystemSettings) SessionTimeout() time.Duration {
	return time.Duration(s.SessionTimeoutMinutes) * time.Minute
}

// AllowsEncoding reports whether CSV uploads may use encoding.
func (s *SystemSettings) AllowsEncoding(encoding string) bool {
	for _, e := range s.AllowedCSVEncodings {
		if e == encoding {
			return true
		}
	}
	return false
}

// Validate checks every field against its allowed range.
func (s *SystemSettings) Validate() error {
	checks := []struct {
		field    string
		value    int
		min, max int
	}{
		{"max_csv_file_size_mb", s.MaxCSVFileSizeMB, 1, 100},
		{"max_pdf_file_size_mb", s.MaxPDFFileSizeMB, 1, 100},
		{"max_tokens_per_request", s.MaxTokensPerRequest, 100, 16000},
		{"session_timeout_minutes", s.SessionTimeoutMinutes, 5, 480},
		{"max_login_attempts", s.MaxLoginAttempts, 3, 10},
		{"lockout_duration_minutes", s.LockoutDurationMinutes, 5, 1440},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return fmt.Errorf("%s must be between %d and %d", c.field, c.min, c.max)
		}
	}
	if s.AITemperature < 0 || s.AITemperature > 2 {
		return fmt.Errorf("ai_temperature must be between 0 and 2")
	}
	if s.DailyTokenLimit < 0 {
		return fmt.Errorf("daily_token_limit must not be negative")
	}
	if s.DefaultAIModel == "" {
		return fmt.Errorf("default_ai_model is required")
	}
	for _, e := range s.AllowedCSVEncodings {
		if e != EncodingUTF8 && e != EncodingShiftJIS {
			return fmt.Errorf("unsupported csv encoding %q", e)
		}
	}
	return nil
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
// An empty OpenAIAPIKey clears the stored key.
type SettingsUpdate struct {
	MaxCSVFileSizeMB          *int      `json:"max_csv_file_size_mb"`
	AllowedCSVEncodings       *[]string `json:"allowed_csv_encodings"`
	OpenAIAPIKey              *string   `json:"openai_api_key"`
	DefaultAIModel            *string   `json:"default_ai_model"`
	AITemperature             *float64  `json:"ai_temperature"`
	MaxTokensPerRequest       *int      `json:"max_tokens_per_request"`
	DailyTokenLimit           *int      `json:"daily_token_limit"`
	AIEnabled                 *bool     `json:"ai_enabled"`
	MaxPDFFileSizeMB          *int      `json:"max_pdf_file_size_mb"`
	PDFProcessingEnabled      *bool     `json:"pdf_processing_enabled"`
	SessionTimeoutMinutes     *int      `json:"session_timeout_minutes"`
	MaxLoginAttempts          *int      `json:"max_login_attempts"`
	LockoutDurationMinutes    *int      `json:"lockout_duration_minutes"`
	EmailNotificationsEnabled *bool     `json:"email_notifications_enabled"`
	NotificationEmail         *string   `json:"notification_email"`
	MaintenanceMode           *bool     `json:"maintenance_mode"`
	MaintenanceMessage        *string   `json:"maintenance_message"`
	SystemAnnouncement        *string   `json:"system_announcement"`
}

// Apply copies the set fields of u onto s. The API key is handled by the caller.
func (u *SettingsUpdate) Apply(s *SystemSettings) {
	setInt(&s.MaxCSVFileSizeMB, u.MaxCSVFileSizeMB)
	if u.AllowedCSVEncodings != nil {
		s.AllowedCSVEncodings = append([]string(nil), (*u.AllowedCSVEncodings)...)
	}
	if u.DefaultAIModel != nil {
		s.DefaultAIModel = *u.DefaultAIModel
	}
	if u.AITemperature != nil {
		s.AITemperature = *u.AITemperature
	}
	setInt(&s.MaxTokensPerRequest, u.MaxTokensPerRequest)
	setInt(&s.DailyTokenLimit, u.DailyTokenLimit)
	setBool(&s.AIEnabled, u.AIEnabled)
	setInt(&s.MaxPDFFileSizeMB, u.MaxPDFFileSizeMB)
	setBool(&s.PDFProcessingEnabled, u.PDFProcessingEnabled)
	setInt(&s.SessionTimeoutMinutes, u.SessionTimeoutMinutes)
	setInt(&s.MaxLoginAttempts, u.MaxLoginAttempts)
	setInt(&s.LockoutDurationMinutes, u.LockoutDurationMinutes)
	setBool(&s.EmailNotificationsEnabled, u.EmailNotificationsEnabled)
	setString(&s.NotificationEmail, u.NotificationEmail)
	setBool(&s.MaintenanceMode, u.MaintenanceMode)
	setString(&s.MaintenanceMessage, u.MaintenanceMessage)
	setString(&s.SystemAnnouncement, u.SystemAnnouncement)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// PublicSettings is the subset of settings exposed without authentication.
type PublicSettings struct {
	MaintenanceMode    bool   `json:"maintenance_mode"`
	MaintenanceMessage string `json:"maintenance_message,omitempty"`
	SystemAnnouncement string `json:"system_announcement,omitempty"`
	AIEnabled          bool   `json:"ai_enabled"`
	MaxCSVFileSizeMB   int    `json:"max_csv_file_size_mb"`
}
