package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/audit"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/config"
	"github.com/ekaya-inc/ekaya-sales/pkg/crypto"
	"github.com/ekaya-inc/ekaya-sales/pkg/database"
	"github.com/ekaya-inc/ekaya-sales/pkg/handlers"
	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-sales/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-sales/pkg/middleware"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/realtime"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/retry"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
	"github.com/ekaya-inc/ekaya-sales/pkg/telemetry"
)

const shutdownTimeout = 30 * time.Second

// runServe migrates the database, wires every component and serves until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.Bool("redis", cfg.Redis.Enabled()),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Bool("mcp", cfg.MCP.Enabled))

	shutdownTracing := telemetry.Setup(ctx, cfg.Telemetry, serviceName, cfg.Version, logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	if err := migrate(cfg, logger); err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.ExportDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}

	a, err := buildApp(ctx, cfg, db, redisClient, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	a.registerRoutes(mux)

	var handler http.Handler = mux
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.Recoverer(logger)(handler)
	handler = telemetry.WrapHandler(handler, serviceName)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.maintenance.RunScheduler(ctx, services.MaintenanceInterval)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if cfg.TLSCertPath != "" {
			serveErr <- srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := a.queue.Shutdown(shutdownCtx); err != nil {
		logger.Error("Work queue shutdown failed", zap.Error(err))
	}
	if a.toolAuditor != nil {
		a.toolAuditor.Wait()
	}
	a.callRecorder.Close()
	logger.Info("Server stopped")
	return nil
}

// app holds the wired components the HTTP surface needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	queue       *workqueue.Queue
	hub         *realtime.Hub
	guards      handlers.Guards
	authService auth.AuthService
	sessions    *auth.SessionStore
	cookies     auth.CookieSettings
	health      map[string]handlers.Pinger
	scopes      database.ScopeProvider
	security    *audit.SecurityAuditor
	toolAuditor *mcp.ToolAuditor

	callRecorder *llm.AsyncCallRecorder

	settings    services.SettingsService
	users       services.UserService
	activity    services.ActivityService
	chat        services.AIChatService
	templates   services.PromptTemplateService
	companies   services.CompanyService
	products    services.ProductService
	knowledge   services.KnowledgeService
	csv         services.CSVService
	matching    services.MatchingService
	scripts     services.TalkScriptService
	exports     services.ExportService
	outcomes    services.SalesOutcomeService
	training    services.TrainingService
	maintenance services.MaintenanceService
	llmCalls    services.LLMCallService
}

func buildApp(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zap.Logger) (*app, error) {
	scopes := database.NewScopeProvider(db)

	var box *crypto.SecretBox
	if cfg.CredentialsKey != "" {
		b, err := crypto.NewSecretBox(cfg.CredentialsKey)
		if err != nil {
			return nil, fmt.Errorf("invalid CREDENTIALS_KEY: %w", err)
		}
		box = b
	} else {
		logger.Warn("CREDENTIALS_KEY not set; the AI API key cannot be stored in settings")
	}

	jwtSecret, err := secretOrEphemeral(cfg, "AUTH_JWT_SECRET", cfg.Auth.JWTSecret, logger)
	if err != nil {
		return nil, err
	}
	sessionSecret, err := secretOrEphemeral(cfg, "AUTH_SESSION_SECRET", cfg.Auth.SessionSecret, logger)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(jwtSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	jwks, err := auth.NewJWKSClient(ctx, cfg.Auth.JWKSEndpoints)
	if err != nil {
		return nil, fmt.Errorf("load JWKS endpoints: %w", err)
	}
	cookies := auth.DeriveCookieSettings(cfg.BaseURL, cfg.Auth.SecureCookies)
	sessions := auth.NewSessionStore(sessionSecret, cookies)

	var limiter auth.LoginLimiter = auth.NewMemoryLoginLimiter()
	if redisClient != nil {
		limiter = auth.NewLoginLimiter(redisClient)
	}
	security := audit.NewSecurityAuditor(logger)

	// Repositories
	userRepo := repositories.NewUserRepository()
	settingsRepo := repositories.NewSettingsRepository()
	activityRepo := repositories.NewActivityLogRepository()
	templateRepo := repositories.NewPromptTemplateRepository()
	companyRepo := repositories.NewCompanyRepository()
	productRepo := repositories.NewProductRepository()
	knowledgeRepo := repositories.NewKnowledgeRepository()
	csvRepo := repositories.NewCSVRepository()
	scriptRepo := repositories.NewTalkScriptRepository()
	exportRepo := repositories.NewExportRepository()
	outcomeRepo := repositories.NewSalesOutcomeRepository()
	trainingRepo := repositories.NewTrainingRepository()
	llmCallRepo := repositories.NewLLMCallRepository()

	// AI stack
	settings := services.NewSettingsService(settingsRepo, scopes, redisClient, box, cfg.LLM, logger)
	budget := services.NewTokenBudget(redisClient, func(ctx context.Context) (int, error) {
		s, err := settings.Effective(ctx)
		if err != nil {
			return 0, err
		}
		return s.DailyTokenLimit, nil
	}, logger)
	llmFactory := llm.NewClientFactory(settings, budget, logger.Named("llm"))
	callRecorder := llm.NewAsyncCallRecorder(llmCallRepo, func(ctx context.Context) (context.Context, func(), error) {
		return scopes.WithScope(ctx, uuid.Nil)
	}, logger, 256)
	llmFactory.SetRecorder(callRecorder)
	templates := services.NewPromptTemplateService(templateRepo, settings, logger)
	matching := services.NewMatchingService(productRepo, outcomeRepo, templates, llmFactory, logger)

	// Background work
	queue := workqueue.New(logger.Named("workqueue"),
		workqueue.WithStrategy(workqueue.NewThrottledLLMStrategy(cfg.WorkQueue.MaxConcurrentLLM)),
		workqueue.WithRetryConfig(retry.LinearConfig(cfg.WorkQueue.MaxRetries, cfg.WorkQueue.RetryStep)),
	)
	hub := realtime.NewHub(logger)
	queue.SetOnUpdate(hub.Publish)
	taskCtx := services.NewTaskContextFunc(scopes)

	companyTask := func(c *models.Company) workqueue.Task {
		return services.NewCompanyStructuringTask(companyRepo, templates, llmFactory, taskCtx, logger, c)
	}
	analysisTask := func(a *models.Analysis, upload *models.CSVUpload) workqueue.Task {
		return services.NewCSVAnalysisTask(csvRepo, settings, templates, llmFactory, taskCtx, logger, a, upload)
	}
	knowledgeTask := func(k *models.ProductKnowledge, productName string, owner *uuid.UUID) workqueue.Task {
		return services.NewKnowledgeStructuringTask(knowledgeRepo, templates, llmFactory, taskCtx, logger, k, productName, owner)
	}
	scriptDeps := services.TalkScriptTaskDeps{
		Repo:         scriptRepo,
		CompanyRepo:  companyRepo,
		CSVRepo:      csvRepo,
		TemplateRepo: templateRepo,
		Matching:     matching,
		Templates:    templates,
		LLMFactory:   llmFactory,
		TaskCtx:      taskCtx,
		Logger:       logger,
	}
	scriptTask := func(s *models.TalkScript) workqueue.Task {
		return services.NewTalkScriptTask(scriptDeps, s)
	}
	exportDeps := services.ExportTaskDeps{
		Repo:        exportRepo,
		ScriptRepo:  scriptRepo,
		CompanyRepo: companyRepo,
		ProductRepo: productRepo,
		TaskCtx:     taskCtx,
		ExportDir:   cfg.Storage.ExportDir,
		Logger:      logger,
	}
	exportTask := func(e *models.ExportHistory, owner *uuid.UUID) workqueue.Task {
		return services.NewExportTask(exportDeps, e, owner)
	}

	// Services
	users := services.NewUserService(userRepo, settings, scopes, tokens, limiter, security, logger)
	authService := auth.NewAuthService(tokens, sessions, jwks, users, logger.Named("auth"))
	csvService := services.NewCSVService(csvRepo, settings, queue, analysisTask, cfg.Storage.UploadDir, logger)

	a := &app{
		cfg:         cfg,
		logger:      logger,
		queue:       queue,
		hub:         hub,
		authService: authService,
		sessions:    sessions,
		cookies:     cookies,
		scopes:      scopes,
		security:    security,

		callRecorder: callRecorder,

		settings:  settings,
		users:     users,
		activity:  services.NewActivityService(activityRepo, logger),
		chat:      services.NewAIChatService(settings, llmFactory, logger),
		templates: templates,
		companies: services.NewCompanyService(companyRepo, settings, queue, companyTask, logger),
		products:  services.NewProductService(productRepo, logger),
		knowledge: services.NewKnowledgeService(knowledgeRepo, productRepo, settings, queue, knowledgeTask, logger),
		csv:       csvService,
		matching:  matching,
		scripts:   services.NewTalkScriptService(scriptRepo, companyRepo, csvRepo, templateRepo, settings, queue, scriptTask, logger),
		exports:   services.NewExportService(exportRepo, scriptRepo, queue, exportTask, logger),
		outcomes:  services.NewSalesOutcomeService(outcomeRepo, scriptRepo, logger),
		training:  services.NewTrainingService(trainingRepo, logger),
		llmCalls:  services.NewLLMCallService(llmCallRepo, logger),
		maintenance: services.NewMaintenanceService(services.MaintenanceDeps{
			Queue:       queue,
			PruneAfter:  cfg.WorkQueue.PruneAfter,
			Scopes:      scopes,
			Companies:   companyRepo,
			Knowledge:   knowledgeRepo,
			CSV:         csvRepo,
			TalkScripts: scriptRepo,
			Exports:     exportRepo,
			CSVService:  csvService,
			LLMCalls:    llmCallRepo,
		}, logger),
	}

	a.guards = handlers.Guards{
		Auth:        auth.NewMiddleware(authService, settings, logger.Named("auth")),
		UserScope:   database.WithRequestScope(db, logger),
		SystemScope: database.WithSystemScope(db, logger),
	}

	a.health = map[string]handlers.Pinger{"database": handlers.PingFunc(db.Ping)}
	if redisClient != nil {
		a.health["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	return a, nil
}

func (a *app) registerRoutes(mux *http.ServeMux) {
	handlers.NewHealthHandler(a.cfg, a.health, a.logger).RegisterRoutes(mux)

	handlers.NewAuthHandler(a.users, a.activity, a.sessions, a.cookies, a.cfg.Auth.Issuer, a.logger).RegisterRoutes(mux, a.guards)
	handlers.NewUsersHandler(a.users, a.activity, a.logger).RegisterRoutes(mux, a.guards)
	handlers.NewSettingsHandler(a.settings, a.chat, a.activity, a.logger).RegisterRoutes(mux, a.guards)
	handlers.NewPromptTemplatesHandler(a.templates, a.activity, a.logger).RegisterRoutes(mux, a.guards)
	handlers.NewCompaniesHandler(a.companies, a.activity, a.logger).RegisterRoutes(mux, a.guards)
	handlers.NewProductsHandler(a.products, a.knowledge, a.activity, a.logger).RegisterRoutes(mux, a.guards)
	handlers.NewCSVHandler(a.csv, a.activity, a.logger).RegisterRoutes(mux, a.guards)
	handlers.NewTalkScriptsHandler(a.scripts, a.exports, a.activity, a.logger).RegisterRoutes(mux, a.guards)
	handlers.NewOutcomesHandler(a.outcomes, a.training, a.activity, a.logger).RegisterRoutes(mux, a.guards)
	handlers.NewLLMCallsHandler(a.llmCalls, a.logger).RegisterRoutes(mux, a.guards)

	realtime.NewTasksHandler(a.queue, a.hub, nil, a.logger).RegisterRoutes(mux, a.guards)

	if a.cfg.MCP.Enabled {
		a.toolAuditor = mcp.NewToolAuditor(a.activity, a.scopes, a.security, a.logger)
		mcpServer := mcp.NewServer(serviceName, a.cfg.Version, a.logger, server.WithHooks(a.toolAuditor.Hooks()))
		tools.RegisterAll(mcpServer.MCP(), &tools.Deps{
			Scopes:      a.scopes,
			Companies:   a.companies,
			Products:    a.products,
			TalkScripts: a.scripts,
			Matching:    a.matching,
			Logger:      a.logger.Named("mcp-tools"),
		}, a.cfg.Version)
		mcpAuth := mcpauth.NewMiddleware(a.authService, a.settings, a.logger.Named("mcp-auth"))
		handlers.NewMCPHandler(mcpServer, a.logger.Named("mcp")).RegisterRoutes(mux, mcpAuth)
	}
}

// secretOrEphemeral returns value, or a random secret in local environments.
// Config validation already rejects empty secrets elsewhere.
func secretOrEphemeral(cfg *config.Config, name, value string, logger *zap.Logger) (string, error) {
	if value != "" {
		return value, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate %s: %w", name, err)
	}
	logger.Warn("Secret not set, using a random one; sessions will not survive a restart",
		zap.String("variable", name), zap.String("env", cfg.Env))
	return hex.EncodeToString(buf), nil
}
