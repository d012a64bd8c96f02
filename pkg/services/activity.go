package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

// RequestMeta carries the client details recorded with an activity.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ActivityService records and lists user actions.
type ActivityService interface {
	// Record stores an activity for the user in ctx. Failures are logged, never returned.
	Record(ctx context.Context, action, targetType, targetID, summary string, meta RequestMeta)
	List(ctx context.Context, filter models.ActivityLogFilter) ([]*models.ActivityLog, error)
}

type activityService struct {
	repo   repositories.ActivityLogRepository
	logger *zap.Logger
}

// NewActivityService creates an ActivityService.
func NewActivityService(repo repositories.ActivityLogRepository, logger *zap.Logger) ActivityService {
	return &activityService{repo: repo, logger: logger.Named("activity")}
}

var _ ActivityService = (*activityService)(nil)

func (s *activityService) Record(ctx context.Context, action, targetType, targetID, summary string, meta RequestMeta) {
	entry := &models.ActivityLog{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Summary:    summary,
		UserAgent:  meta.UserAgent,
	}
	if meta.IP != "" {
		entry.IPAddress = &meta.IP
	}
	if userID, ok := auth.GetUserIDFromContext(ctx); ok {
		entry.UserID = &userID
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("Failed to record activity",
			zap.String("action", action),
			zap.String("target_type", targetType),
			zap.String("target_id", targetID),
			zap.Error(err))
	}
}

func (s *activityService) List(ctx context.Context, filter models.ActivityLogFilter) ([]*models.ActivityLog, error) {
	return s.repo.List(ctx, filter)
}

var actionVerbs = map[string]string{
	models.ActionLogin:    "Logged in",
	models.ActionLogout:   "Logged out",
	models.ActionCreate:   "Created",
	models.ActionUpdate:   "Updated",
	models.ActionDelete:   "Deleted",
	models.ActionView:     "Viewed",
	models.ActionDownload: "Downloaded",
}

// ActivitySummary builds a summary such as `Created company "Acme"`.
func ActivitySummary(action, targetType, label string) string {
	verb, ok := actionVerbs[action]
	if !ok {
		verb = action
	}
	noun := strings.ReplaceAll(targetType, "_", " ")
	if label == "" {
		return strings.TrimSpace(verb + " " + noun)
	}
	return fmt.Sprintf("%s %s %q", verb, noun, label)
}

// CountSummary builds a summary such as "Deleted 3 companies".
func CountSummary(action, targetType string, n int) string {
	verb, ok := actionVerbs[action]
	if !ok {
		verb = action
	}
	return fmt.Sprintf("%s %s", verb, CountNoun(n, strings.ReplaceAll(targetType, "_", " ")))
}

// CountNoun renders n with noun pluralised when needed: "1 product", "3 companies".
func CountNoun(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", inflection.Singular(noun))
	}
	return fmt.Sprintf("%d %s", n, inflection.Plural(noun))
}
