package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/audit"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/config"
	"github.com/ekaya-inc/ekaya-sales/pkg/database"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

type seedOptions struct {
	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

// runSeed migrates, then inserts whatever initial data is missing.
func runSeed(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts seedOptions) error {
	if err := migrate(cfg, logger); err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	scopes := database.NewScopeProvider(db)
	scoped, cleanup, err := scopes.WithScope(ctx, uuid.Nil)
	if err != nil {
		return fmt.Errorf("acquire scope: %w", err)
	}
	defer cleanup()

	settingsRepo := repositories.NewSettingsRepository()
	if err := settingsRepo.EnsureDefaults(scoped); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	settings := services.NewSettingsService(settingsRepo, scopes, nil, nil, cfg.LLM, logger)
	templates := services.NewPromptTemplateService(repositories.NewPromptTemplateRepository(), settings, logger)
	inserted, err := templates.Seed(scoped)
	if err != nil {
		return fmt.Errorf("seed prompt templates: %w", err)
	}

	userRepo := repositories.NewUserRepository()
	created := false
	if _, err := userRepo.GetByUsername(scoped, opts.AdminUsername); errors.Is(err, apperrors.ErrNotFound) {
		users := services.NewUserService(userRepo, settings, scopes, nil, auth.NewMemoryLoginLimiter(), audit.NewSecurityAuditor(logger), logger)
		if _, err := users.Create(scoped, &services.CreateUserRequest{
			Username: opts.AdminUsername,
			Email:    opts.AdminEmail,
			Password: opts.AdminPassword,
			Role:     models.RoleAdmin,
		}); err != nil {
			return fmt.Errorf("create admin user: %w", err)
		}
		created = true
	} else if err != nil {
		return fmt.Errorf("look up admin user: %w", err)
	}

	logger.Info("Seed complete",
		zap.String("admin_username", opts.AdminUsername),
		zap.Bool("admin_created", created),
		zap.Int("templates_inserted", inserted))
	return nil
}
