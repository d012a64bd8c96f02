// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventInjectionAttempt is logged when screening finds an injection payload in user input.
	EventInjectionAttempt SecurityEventType = "injection_attempt"
	// EventLoginFailure is logged for every rejected login.
	EventLoginFailure SecurityEventType = "login_failure"
	// EventAccountLocked is logged when repeated failures lock an account.
	EventAccountLocked SecurityEventType = "account_locked"
	// EventPermissionDenied is logged when a user acts on a record they may not touch.
	EventPermissionDenied SecurityEventType = "permission_denied"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a security auditor logging under the "security_audit" name.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records findings from input screening at ERROR level.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, resource string, findings []Finding, clientIP string) {
	event := a.event(ctx, EventInjectionAttempt, "critical", clientIP, map[string]any{
		"resource": resource,
		"findings": findings,
	})

	fields := make([]string, 0, len(findings))
	for _, f := range findings {
		fields = append(fields, f.Field)
	}

	a.logger.Error("Injection payload detected in user input",
		zap.String("event_json", marshal(event)),
		zap.String("resource", resource),
		zap.Strings("fields", fields),
		zap.String("client_ip", clientIP),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

// LogLoginFailure records a rejected login. The reason never includes the password.
func (a *SecurityAuditor) LogLoginFailure(ctx context.Context, username, reason, clientIP string) {
	event := a.event(ctx, EventLoginFailure, "warning", clientIP, map[string]string{"reason": reason})
	event.Username = username

	a.logger.Warn("Login failed",
		zap.String("event_json", marshal(event)),
		zap.String("username", username),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP),
		zap.String("severity", event.Severity),
	)
}

// LogAccountLocked records a lockout triggered by repeated failures.
func (a *SecurityAuditor) LogAccountLocked(ctx context.Context, username string, lockout time.Duration, clientIP string) {
	event := a.event(ctx, EventAccountLocked, "critical", clientIP, map[string]string{"lockout": lockout.String()})
	event.Username = username

	a.logger.Error("Account locked after repeated login failures",
		zap.String("event_json", marshal(event)),
		zap.String("username", username),
		zap.Duration("lockout", lockout),
		zap.String("client_ip", clientIP),
		zap.String("severity", event.Severity),
	)
}

// LogPermissionDenied records an attempt to act on a record outside the user's reach.
func (a *SecurityAuditor) LogPermissionDenied(ctx context.Context, action, resource, resourceID string) {
	event := a.event(ctx, EventPermissionDenied, "warning", "", map[string]string{
		"action":      action,
		"resource":    resource,
		"resource_id": resourceID,
	})

	a.logger.Warn("Permission denied",
		zap.String("event_json", marshal(event)),
		zap.String("action", action),
		zap.String("resource", resource),
		zap.String("resource_id", resourceID),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

func (a *SecurityAuditor) event(ctx context.Context, eventType SecurityEventType, severity, clientIP string, details any) SecurityEvent {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		ClientIP:  clientIP,
		Details:   details,
		Severity:  severity,
	}
	if claims, ok := auth.GetClaims(ctx); ok {
		event.UserID = claims.Subject
		event.Username = claims.Username
	}
	return event
}

// marshal ignores the error: every event is built from JSON-safe types.
func marshal(event SecurityEvent) string {
	b, _ := json.Marshal(event)
	return string(b)
}
