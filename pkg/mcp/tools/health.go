package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
)

type healthResult struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

// RegisterHealthTool adds "health", which also echoes the caller so clients can check their token.
func RegisterHealthTool(s *server.MCPServer, version string) {
	tool := mcp.NewTool("health",
		append(readOnly(), mcp.WithDescription("Reports server status, version and the authenticated user"))...,
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out := healthResult{Status: "ok", Version: version}
		if claims, ok := auth.GetClaims(ctx); ok {
			out.Username = claims.Username
			out.Role = claims.Role
		}
		return jsonResult(out)
	})
}
