package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/config"
	"github.com/ekaya-inc/ekaya-sales/pkg/crypto"
	"github.com/ekaya-inc/ekaya-sales/pkg/database"
	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/logging"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

// AISettings are the effective model parameters for AI calls.
type AISettings struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// AITestResult reports a connection test together with the key that was used.
type AITestResult struct {
	*llm.TestResult
	MaskedKey string `json:"masked_key,omitempty"`
}

// SettingsService manages the system settings singleton.
type SettingsService interface {
	llm.ConfigProvider
	auth.MaintenanceChecker

	// Get returns the settings with the API key masked.
	Get(ctx context.Context) (*models.SystemSettings, error)
	Public(ctx context.Context) (*models.PublicSettings, error)
	// Update applies a partial update, validates it and invalidates the cache.
	Update(ctx context.Context, upd *models.SettingsUpdate) (*models.SystemSettings, error)
	AISettings(ctx context.Context) (*AISettings, error)
	// AIEnabled reports whether AI is switched on and an API key resolves.
	AIEnabled(ctx context.Context) bool
	// TestAIConnection sends one small completion with the resolved key.
	TestAIConnection(ctx context.Context) (*AITestResult, error)
	// Effective returns the settings with the API key decrypted, for internal use.
	Effective(ctx context.Context) (*models.SystemSettings, error)
}

type settingsService struct {
	repo   repositories.SettingsRepository
	scopes database.ScopeProvider
	cache  settingsCache
	box    *crypto.SecretBox
	llmCfg config.LLMConfig
	logger *zap.Logger
}

// NewSettingsService creates a SettingsService. redisClient and box may be nil;
// without a box the API key cannot be changed through the API.
func NewSettingsService(
	repo repositories.SettingsRepository,
	scopes database.ScopeProvider,
	redisClient *redis.Client,
	box *crypto.SecretBox,
	llmCfg config.LLMConfig,
	logger *zap.Logger,
) SettingsService {
	named := logger.Named("settings")
	return &settingsService{
		repo:   repo,
		scopes: scopes,
		cache:  newSettingsCache(redisClient, named),
		box:    box,
		llmCfg: llmCfg,
		logger: named,
	}
}

var _ SettingsService = (*settingsService)(nil)

// stored returns the row as persisted (sealed key), through the cache.
// Callers outside a request, like the auth middleware, get a system scope.
func (s *settingsService) stored(ctx context.Context) (*models.SystemSettings, error) {
	if cached, ok := s.cache.Get(ctx); ok {
		return cached, nil
	}

	if _, ok := database.GetScope(ctx); !ok {
		scoped, cleanup, err := s.scopes.WithScope(ctx, uuid.Nil)
		if err != nil {
			return nil, fmt.Errorf("open settings scope: %w", err)
		}
		defer cleanup()
		ctx = scoped
	}

	settings, err := s.repo.Get(ctx)
	if errors.Is(err, apperrors.ErrNotFound) {
		settings = models.DefaultSystemSettings()
	} else if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, settings)
	return settings, nil
}

func (s *settingsService) Effective(ctx context.Context) (*models.SystemSettings, error) {
	settings, err := s.stored(ctx)
	if err != nil {
		return nil, err
	}
	settings.OpenAIAPIKey = s.openKey(settings.OpenAIAPIKey)
	return settings, nil
}

// openKey decrypts a stored key. Keys that cannot be opened are treated as absent.
func (s *settingsService) openKey(stored string) string {
	if stored == "" {
		return ""
	}
	if !crypto.IsSealed(stored) {
		return stored
	}
	if s.box == nil {
		s.logger.Error("Stored API key is encrypted but CREDENTIALS_KEY is not set")
		return ""
	}
	key, err := s.box.Open(stored)
	if err != nil {
		s.logger.Error("Stored API key cannot be decrypted", zap.Error(apperrors.ErrCredentialsKey))
		return ""
	}
	return key
}

func (s *settingsService) Get(ctx context.Context) (*models.SystemSettings, error) {
	settings, err := s.Effective(ctx)
	if err != nil {
		return nil, err
	}
	settings.OpenAIAPIKey = logging.MaskAPIKey(settings.OpenAIAPIKey)
	return settings, nil
}

func (s *settingsService) Public(ctx context.Context) (*models.PublicSettings, error) {
	settings, err := s.Effective(ctx)
	if err != nil {
		return nil, err
	}
	return &models.PublicSettings{
		MaintenanceMode:    settings.MaintenanceMode,
		MaintenanceMessage: settings.MaintenanceMessage,
		SystemAnnouncement: settings.SystemAnnouncement,
		AIEnabled:          settings.AIEnabled && s.resolveKey(settings) != "",
		MaxCSVFileSizeMB:   settings.MaxCSVFileSizeMB,
	}, nil
}

func (s *settingsService) Update(ctx context.Context, upd *models.SettingsUpdate) (*models.SystemSettings, error) {
	s.cache.Invalidate(ctx)
	settings, err := s.stored(ctx)
	if err != nil {
		return nil, err
	}

	upd.Apply(settings)
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, err.Error())
	}

	if upd.OpenAIAPIKey != nil {
		sealed, err := s.sealKey(*upd.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		settings.OpenAIAPIKey = sealed
	}

	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)

	s.logger.Info("System settings updated",
		zap.Bool("ai_enabled", settings.AIEnabled),
		zap.Bool("maintenance_mode", settings.MaintenanceMode),
		zap.Bool("api_key_changed", upd.OpenAIAPIKey != nil))

	return s.Get(ctx)
}

func (s *settingsService) sealKey(key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if s.box == nil {
		return "", fmt.Errorf("%w: CREDENTIALS_KEY must be configured to store an API key", apperrors.ErrInvalidInput)
	}
	return s.box.Seal(key)
}

// resolveKey prefers the key stored in settings over the environment key.
func (s *settingsService) resolveKey(settings *models.SystemSettings) string {
	if settings.OpenAIAPIKey != "" {
		return settings.OpenAIAPIKey
	}
	return s.llmCfg.APIKey()
}

func (s *settingsService) AISettings(ctx context.Context) (*AISettings, error) {
	settings, err := s.stored(ctx)
	if err != nil {
		return nil, err
	}
	model := settings.DefaultAIModel
	if model == "" {
		model = s.llmCfg.DefaultModel
	}
	return &AISettings{
		Model:       model,
		Temperature: settings.AITemperature,
		MaxTokens:   settings.MaxTokensPerRequest,
	}, nil
}

func (s *settingsService) AIEnabled(ctx context.Context) bool {
	settings, err := s.Effective(ctx)
	if err != nil {
		s.logger.Warn("Failed to read settings", zap.Error(err))
		return false
	}
	return settings.AIEnabled && s.resolveKey(settings) != ""
}

// ResolveLLMConfig implements llm.ConfigProvider.
func (s *settingsService) ResolveLLMConfig(ctx context.Context) (*llm.ProviderConfig, error) {
	settings, err := s.Effective(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.AIEnabled {
		return nil, apperrors.ErrAIDisabled
	}
	key := s.resolveKey(settings)
	if key == "" {
		return nil, fmt.Errorf("%w: no API key configured", apperrors.ErrAIDisabled)
	}

	model := settings.DefaultAIModel
	if model == "" {
		model = s.llmCfg.DefaultModel
	}
	return &llm.ProviderConfig{
		Provider:    s.llmCfg.Provider,
		BaseURL:     s.llmCfg.BaseURL,
		APIKey:      key,
		Model:       model,
		Temperature: settings.AITemperature,
		MaxTokens:   settings.MaxTokensPerRequest,
		Timeout:     s.llmCfg.RequestTimeout,
	}, nil
}

// MaintenanceStatus implements auth.MaintenanceChecker. Read failures leave the system open.
func (s *settingsService) MaintenanceStatus(ctx context.Context) (bool, string) {
	settings, err := s.stored(ctx)
	if err != nil {
		s.logger.Warn("Failed to read maintenance status", zap.Error(err))
		return false, ""
	}
	return settings.MaintenanceMode, settings.MaintenanceMessage
}

func (s *settingsService) TestAIConnection(ctx context.Context) (*AITestResult, error) {
	settings, err := s.Effective(ctx)
	if err != nil {
		return nil, err
	}

	key := s.resolveKey(settings)
	if key == "" {
		return &AITestResult{TestResult: &llm.TestResult{
			Provider: s.llmCfg.Provider,
			Message:  "no API key configured",
		}}, nil
	}

	model := s.llmCfg.TestModel
	if model == "" {
		model = settings.DefaultAIModel
	}

	client, err := llm.NewProviderClient(&llm.ProviderConfig{
		Provider:  s.llmCfg.Provider,
		BaseURL:   s.llmCfg.BaseURL,
		APIKey:    key,
		Model:     model,
		MaxTokens: 50,
		Timeout:   30 * time.Second,
	}, s.logger)
	if err != nil {
		return nil, err
	}

	result := llm.CheckConnection(ctx, client, model, 30*time.Second)
	s.logger.Info("AI connection test",
		zap.Bool("success", result.Success),
		zap.String("model", result.Model),
		zap.Int64("response_time_ms", result.ResponseTimeMs))

	return &AITestResult{TestResult: result, MaskedKey: logging.MaskAPIKey(key)}, nil
}
