package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/database"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

const (
	// MaintenanceInterval is how often the maintenance job runs.
	MaintenanceInterval = time.Hour
	// StuckAfter is how long a record may stay pending or processing before it is failed.
	StuckAfter = 24 * time.Hour
	// FinishedTaskTTL is how long finished queue tasks stay visible.
	FinishedTaskTTL = time.Hour
	// LLMCallStuckAfter is how long an audited LLM call may stay pending.
	LLMCallStuckAfter = time.Hour
	// LLMCallRetention is how long audited LLM calls are kept.
	LLMCallRetention = 90 * 24 * time.Hour
)

// TaskPruner drops finished tasks from the work queue.
type TaskPruner interface {
	Prune(olderThan time.Duration) int
}

// MaintenanceReport counts what one maintenance run changed.
type MaintenanceReport struct {
	TasksPruned       int   `json:"tasks_pruned"`
	CompaniesFailed   int64 `json:"companies_failed"`
	KnowledgeFailed   int64 `json:"knowledge_failed"`
	AnalysesFailed    int64 `json:"analyses_failed"`
	ScriptsFailed     int64 `json:"scripts_failed"`
	ExportsFailed     int64 `json:"exports_failed"`
	CSVUploadsDeleted int   `json:"csv_uploads_deleted"`
	LLMCallsFailed    int64 `json:"llm_calls_failed"`
	LLMCallsDeleted   int64 `json:"llm_calls_deleted"`
}

// MaintenanceService cleans up after background work.
type MaintenanceService interface {
	// RunOnce prunes the queue, fails records left behind by interrupted tasks
	// and deletes expired CSV uploads.
	RunOnce(ctx context.Context) (*MaintenanceReport, error)
	// RunScheduler starts a goroutine that runs RunOnce immediately and then every interval until ctx is done.
	RunScheduler(ctx context.Context, interval time.Duration)
}

// MaintenanceDeps are the stores a maintenance run touches.
type MaintenanceDeps struct {
	Queue       TaskPruner
	PruneAfter  time.Duration // Zero means FinishedTaskTTL
	Scopes      database.ScopeProvider
	Companies   repositories.CompanyRepository
	Knowledge   repositories.KnowledgeRepository
	CSV         repositories.CSVRepository
	TalkScripts repositories.TalkScriptRepository
	Exports     repositories.ExportRepository
	CSVService  CSVService
	LLMCalls    repositories.LLMCallRepository // Optional
}

type maintenanceService struct {
	deps   MaintenanceDeps
	now    func() time.Time
	logger *zap.Logger
}

// NewMaintenanceService creates a MaintenanceService.
func NewMaintenanceService(deps MaintenanceDeps, logger *zap.Logger) MaintenanceService {
	return &maintenanceService{deps: deps, now: time.Now, logger: logger.Named("maintenance")}
}

var _ MaintenanceService = (*maintenanceService)(nil)

func (s *maintenanceService) RunOnce(ctx context.Context) (*MaintenanceReport, error) {
	report := &MaintenanceReport{}
	if s.deps.Queue != nil {
		ttl := s.deps.PruneAfter
		if ttl <= 0 {
			ttl = FinishedTaskTTL
		}
		report.TasksPruned = s.deps.Queue.Prune(ttl)
	}

	now := s.now()
	stuckCutoff := now.Add(-StuckAfter)
	csvCutoff := now.Add(-CSVRetention)

	err := withSystemScope(ctx, s.deps.Scopes, func(ctx context.Context) error {
		var errs []error
		failStuck := func(name string, target *int64, fn func(context.Context, time.Time) (int64, error)) {
			n, err := fn(ctx, stuckCutoff)
			if err != nil {
				errs = append(errs, fmt.Errorf("fail stuck %s: %w", name, err))
				return
			}
			*target = n
		}
		failStuck("companies", &report.CompaniesFailed, s.deps.Companies.FailStuck)
		failStuck("knowledge", &report.KnowledgeFailed, s.deps.Knowledge.FailStuck)
		failStuck("analyses", &report.AnalysesFailed, s.deps.CSV.FailStuckAnalyses)
		failStuck("talk-scripts", &report.ScriptsFailed, s.deps.TalkScripts.FailStuck)
		failStuck("exports", &report.ExportsFailed, s.deps.Exports.FailStuck)

		deleted, err := s.deps.CSVService.Cleanup(ctx, csvCutoff)
		report.CSVUploadsDeleted = deleted
		if err != nil {
			errs = append(errs, fmt.Errorf("csv cleanup: %w", err))
		}

		if s.deps.LLMCalls != nil {
			n, err := s.deps.LLMCalls.FailStuck(ctx, now.Add(-LLMCallStuckAfter))
			if err != nil {
				errs = append(errs, fmt.Errorf("fail stuck llm calls: %w", err))
			}
			report.LLMCallsFailed = n
			n, err = s.deps.LLMCalls.DeleteBefore(ctx, now.Add(-LLMCallRetention))
			if err != nil {
				errs = append(errs, fmt.Errorf("delete llm calls: %w", err))
			}
			report.LLMCallsDeleted = n
		}
		return errors.Join(errs...)
	})

	s.logger.Info("Maintenance completed",
		zap.Int("tasks_pruned", report.TasksPruned),
		zap.Int64("companies_failed", report.CompaniesFailed),
		zap.Int64("knowledge_failed", report.KnowledgeFailed),
		zap.Int64("analyses_failed", report.AnalysesFailed),
		zap.Int64("scripts_failed", report.ScriptsFailed),
		zap.Int64("exports_failed", report.ExportsFailed),
		zap.Int("csv_uploads_deleted", report.CSVUploadsDeleted),
		zap.Int64("llm_calls_failed", report.LLMCallsFailed),
		zap.Int64("llm_calls_deleted", report.LLMCallsDeleted))
	return report, err
}

func (s *maintenanceService) RunScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		s.logger.Info("Maintenance scheduler started", zap.Duration("interval", interval))

		s.run(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Maintenance scheduler stopped")
				return
			case <-ticker.C:
				s.run(ctx)
			}
		}
	}()
}

func (s *maintenanceService) run(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Maintenance run failed", zap.Error(err))
	}
}
