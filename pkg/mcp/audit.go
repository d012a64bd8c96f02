package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/audit"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/database"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// ToolTargetType is the activity target type of MCP tool calls.
const ToolTargetType = "mcp_tool"

const maxLoggedArgLen = 200

// ToolAuditor records MCP tool calls in the activity log and screens their
// string arguments for injection payloads.
type ToolAuditor struct {
	activity services.ActivityService
	scopes   database.ScopeProvider
	security *audit.SecurityAuditor
	logger   *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
	// wg tracks in-flight activity writes.
	wg sync.WaitGroup
}

// NewToolAuditor creates a ToolAuditor.
func NewToolAuditor(activity services.ActivityService, scopes database.ScopeProvider, security *audit.SecurityAuditor, logger *zap.Logger) *ToolAuditor {
	return &ToolAuditor{
		activity: activity,
		scopes:   scopes,
		security: security,
		logger:   logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go hooks capturing tool call events.
func (a *ToolAuditor) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

// Wait blocks until pending activity writes finish.
func (a *ToolAuditor) Wait() {
	a.wg.Wait()
}

func (a *ToolAuditor) beforeCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())

	if findings := audit.Screen(stringArgs(req.GetArguments())); len(findings) > 0 {
		a.security.LogInjectionAttempt(ctx, ToolTargetType+":"+req.Params.Name, findings, "")
	}
}

func (a *ToolAuditor) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	duration := a.elapsed(id)
	name := req.Params.Name

	summary := fmt.Sprintf("Called MCP tool %s", name)
	if result != nil && result.IsError {
		summary = fmt.Sprintf("MCP tool %s returned an error", name)
	}

	a.logger.Info("MCP tool call",
		zap.String("tool", name),
		zap.Duration("duration", duration),
		zap.Bool("is_error", result != nil && result.IsError),
		zap.Any("arguments", truncateArgs(req.GetArguments())))

	a.record(ctx, name, summary)
}

func (a *ToolAuditor) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	duration := a.elapsed(id)
	a.logger.Warn("MCP tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", duration),
		zap.Error(err))

	a.record(ctx, req.Params.Name, fmt.Sprintf("MCP tool %s failed", req.Params.Name))
}

func (a *ToolAuditor) elapsed(id any) time.Duration {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

// record writes the activity asynchronously on a fresh scope so the write
// does not race the tool's own connection.
func (a *ToolAuditor) record(ctx context.Context, tool, summary string) {
	claims, ok := auth.GetClaims(ctx)
	if !ok {
		return
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		bg = auth.WithClaims(bg, claims)

		scoped, cleanup, err := a.scopes.WithScope(bg, userID)
		if err != nil {
			a.logger.Warn("Failed to record MCP activity: could not acquire scope", zap.Error(err))
			return
		}
		defer cleanup()

		a.activity.Record(scoped, models.ActionView, ToolTargetType, tool, summary, services.RequestMeta{UserAgent: "mcp"})
	}()
}

func stringArgs(args map[string]any) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func truncateArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && len(s) > maxLoggedArgLen {
			v = s[:maxLoggedArgLen] + "..."
		}
		out[k] = v
	}
	return out
}
