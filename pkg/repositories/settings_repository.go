package repositories

import (
	"context"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// SettingsRepository reads and writes the system settings singleton row.
// The stored API key is opaque here; encryption happens in the service.
type SettingsRepository interface {
	// Get returns apperrors.ErrNotFound until the row has been created.
	Get(ctx context.Context) (*models.SystemSettings, error)
	Save(ctx context.Context, s *models.SystemSettings) error
	// EnsureDefaults inserts the default row when none exists.
	EnsureDefaults(ctx context.Context) error
}

type settingsRepository struct{}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository() SettingsRepository {
	return &settingsRepository{}
}

var _ SettingsRepository = (*settingsRepository)(nil)

func (r *settingsRepository) Get(ctx context.Context) (*models.SystemSettings, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT max_csv_file_size_mb, allowed_csv_encodings, openai_api_key, default_ai_model,
		       ai_temperature, max_tokens_per_request, daily_token_limit, ai_enabled,
		       max_pdf_file_size_mb, pdf_processing_enabled, session_timeout_minutes,
		       max_login_attempts, lockout_duration_minutes, email_notifications_enabled,
		       notification_email, maintenance_mode, maintenance_message, system_announcement,
		       updated_by, updated_at
		FROM system_settings
		WHERE id = 1`

	var s models.SystemSettings
	err = scope.Conn.QueryRow(ctx, query).Scan(
		&s.MaxCSVFileSizeMB,
		&s.AllowedCSVEncodings,
		&s.OpenAIAPIKey,
		&s.DefaultAIModel,
		&s.AITemperature,
		&s.MaxTokensPerRequest,
		&s.DailyTokenLimit,
		&s.AIEnabled,
		&s.MaxPDFFileSizeMB,
		&s.PDFProcessingEnabled,
		&s.SessionTimeoutMinutes,
		&s.MaxLoginAttempts,
		&s.LockoutDurationMinutes,
		&s.EmailNotificationsEnabled,
		&s.NotificationEmail,
		&s.MaintenanceMode,
		&s.MaintenanceMessage,
		&s.SystemAnnouncement,
		&s.UpdatedBy,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, wrapErr("get settings", err)
	}
	return &s, nil
}

func (r *settingsRepository) Save(ctx context.Context, s *models.SystemSettings) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	// updated_by is taken from the connection's acting user.
	query := `
		INSERT INTO system_settings (
			id, max_csv_file_size_mb, allowed_csv_encodings, openai_api_key, default_ai_model,
			ai_temperature, max_tokens_per_request, daily_token_limit, ai_enabled,
			max_pdf_file_size_mb, pdf_processing_enabled, session_timeout_minutes,
			max_login_attempts, lockout_duration_minutes, email_notifications_enabled,
			notification_email, maintenance_mode, maintenance_message, system_announcement
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			max_csv_file_size_mb = EXCLUDED.max_csv_file_size_mb,
			allowed_csv_encodings = EXCLUDED.allowed_csv_encodings,
			openai_api_key = EXCLUDED.openai_api_key,
			default_ai_model = EXCLUDED.default_ai_model,
			ai_temperature = EXCLUDED.ai_temperature,
			max_tokens_per_request = EXCLUDED.max_tokens_per_request,
			daily_token_limit = EXCLUDED.daily_token_limit,
			ai_enabled = EXCLUDED.ai_enabled,
			max_pdf_file_size_mb = EXCLUDED.max_pdf_file_size_mb,
			pdf_processing_enabled = EXCLUDED.pdf_processing_enabled,
			session_timeout_minutes = EXCLUDED.session_timeout_minutes,
			max_login_attempts = EXCLUDED.max_login_attempts,
			lockout_duration_minutes = EXCLUDED.lockout_duration_minutes,
			email_notifications_enabled = EXCLUDED.email_notifications_enabled,
			notification_email = EXCLUDED.notification_email,
			maintenance_mode = EXCLUDED.maintenance_mode,
			maintenance_message = EXCLUDED.maintenance_message,
			system_announcement = EXCLUDED.system_announcement,
			updated_by = current_app_user()
		RETURNING updated_by, updated_at`

	err = scope.Conn.QueryRow(ctx, query,
		s.MaxCSVFileSizeMB,
		nonNil(s.AllowedCSVEncodings),
		s.OpenAIAPIKey,
		s.DefaultAIModel,
		s.AITemperature,
		s.MaxTokensPerRequest,
		s.DailyTokenLimit,
		s.AIEnabled,
		s.MaxPDFFileSizeMB,
		s.PDFProcessingEnabled,
		s.SessionTimeoutMinutes,
		s.MaxLoginAttempts,
		s.LockoutDurationMinutes,
		s.EmailNotificationsEnabled,
		s.NotificationEmail,
		s.MaintenanceMode,
		s.MaintenanceMessage,
		s.SystemAnnouncement,
	).Scan(&s.UpdatedBy, &s.UpdatedAt)
	return wrapErr("save settings", err)
}

func (r *settingsRepository) EnsureDefaults(ctx context.Context) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	_, err = scope.Conn.Exec(ctx, `INSERT INTO system_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
	return wrapErr("ensure default settings", err)
}
