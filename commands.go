package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/config"
	"github.com/ekaya-inc/ekaya-sales/pkg/database"
	"github.com/ekaya-inc/ekaya-sales/pkg/logging"
)

// newRootCmd builds the CLI. Running without a subcommand serves.
func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Sales enablement service: company research, product matching and AI talk-scripts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), version, runServe)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run migrations and start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd.Context(), version, runServe)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd.Context(), version, func(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
					return migrate(cfg, logger)
				})
			},
		},
		newSeedCmd(version),
	)
	return root
}

func newSeedCmd(version string) *cobra.Command {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin user, the settings row and the built-in prompt templates",
		Long: `Seed initial data. Safe to run repeatedly: existing users, settings and
templates are left untouched.

Examples:
  ekaya-sales seed --admin-username admin --admin-password 'change-me-now'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), version, func(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
				return runSeed(ctx, cfg, logger, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.AdminUsername, "admin-username", "admin", "Username of the initial administrator")
	cmd.Flags().StringVar(&opts.AdminPassword, "admin-password", "", "Password of the initial administrator (required)")
	cmd.Flags().StringVar(&opts.AdminEmail, "admin-email", "", "Email of the initial administrator")
	_ = cmd.MarkFlagRequired("admin-password")
	return cmd
}

type runFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger) error

// withRuntime loads configuration, builds the logger and cancels ctx on SIGINT or SIGTERM.
func withRuntime(parent context.Context, version string, run runFunc) error {
	cfg, err := config.Load(version)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, logger)
}

// migrate applies the embedded migrations over a database/sql connection.
func migrate(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := database.OpenSQL(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.NewConnection(ctx, &database.Config{
		URL:              cfg.Database.URL(),
		MaxConnections:   cfg.Database.MaxConnections,
		ApplicationName:  serviceName,
		StatementTimeout: cfg.Database.StatementTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}
