// Package mcp exposes read-only sales tools over the Model Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// instructions is sent to clients during initialize.
const instructions = `Read-only access to the ekaya-sales workspace.
Use list_companies and get_company to find prospects, list_products for the catalog,
get_talk_script for generated scripts and get_learning_context for what has worked
in an industry before. Results are limited to what the authenticated user may see.`

// Server owns the mcp-go server the tools register on.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a tools-only server. opts are appended after the defaults,
// so callers can add hooks.
func NewServer(name, version string, logger *zap.Logger, opts ...server.ServerOption) *Server {
	defaults := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	}
	s := &Server{
		mcp:    server.NewMCPServer(name, version, append(defaults, opts...)...),
		logger: logger.Named("mcp"),
	}
	s.logger.Debug("MCP server created", zap.String("name", name), zap.String("version", version))
	return s
}

// MCP returns the underlying server for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer returns a stateless transport; the caller mounts it on its mux.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}
