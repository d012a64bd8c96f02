package handlers

import (
	"mime"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-sales/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/middleware"
)

// maxMCPBody bounds a single JSON-RPC request. Tool arguments are short filters.
const maxMCPBody = 1 << 20

// MCPHandler serves the stateless streamable-HTTP MCP transport at /mcp.
type MCPHandler struct {
	transport *server.StreamableHTTPServer
	logger    *zap.Logger
}

// NewMCPHandler creates a new MCP handler from an MCP server.
func NewMCPHandler(mcpServer *mcp.Server, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		transport: mcpServer.NewStreamableHTTPServer(),
		logger:    logger,
	}
}

// RegisterRoutes mounts /mcp. Requests are checked for shape before
// authentication, and only authenticated calls reach the JSON-RPC logger.
func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux, mcpAuth *mcpauth.Middleware) {
	logged := middleware.MCPRequestLogger(h.logger)(h.transport)
	mux.Handle("/mcp", h.checkRequest(mcpAuth.RequireAuth(logged)))
}

// checkRequest admits JSON POSTs only and caps the body size.
func (h *MCPHandler) checkRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
			if err := ErrorResponse(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "MCP requests must be application/json"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxMCPBody)
		next.ServeHTTP(w, r)
	})
}
