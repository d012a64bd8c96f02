// Package tools provides the MCP tool implementations for ekaya-sales.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/database"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// Deps contains the dependencies of the sales tools.
type Deps struct {
	Scopes      database.ScopeProvider
	Companies   services.CompanyService
	Products    services.ProductService
	TalkScripts services.TalkScriptService
	Matching    services.MatchingService
	Logger      *zap.Logger
}

// RegisterAll registers every sales tool and the health tool.
func RegisterAll(s *server.MCPServer, deps *Deps, version string) {
	RegisterHealthTool(s, version)
	RegisterCompanyTools(s, deps)
	RegisterProductTools(s, deps)
	RegisterTalkScriptTools(s, deps)
}

// withUserScope opens a database scope for the authenticated caller.
func withUserScope(ctx context.Context, deps *Deps) (context.Context, func(), error) {
	userID, err := auth.RequireUserIDFromContext(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("authentication required")
	}
	scoped, cleanup, err := deps.Scopes.WithScope(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	return scoped, cleanup, nil
}

// jsonResult marshals v as the text content of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

// requireUUID reads a required UUID argument. The returned result is non-nil
// when the argument is missing or malformed.
func requireUUID(req mcp.CallToolRequest, name string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(name)
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_parameters", fmt.Sprintf("%s is required", name))
	}
	id, err := uuid.Parse(trimString(raw))
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_parameters", fmt.Sprintf("%s must be a UUID", name))
	}
	return id, nil
}

// serviceResult turns a recognised service error into an error result the
// caller can act on. Other errors are returned for mcp-go to report.
func serviceResult(err error, resource string) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult(resource+"_not_found", err.Error()), nil
	case errors.Is(err, apperrors.ErrForbidden):
		return NewErrorResult("forbidden", err.Error()), nil
	case errors.Is(err, apperrors.ErrInvalidInput):
		return NewErrorResult("invalid_parameters", err.Error()), nil
	default:
		return nil, err
	}
}

func readOnly() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
}
