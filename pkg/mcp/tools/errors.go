package tools

import (
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorResponse is a structured error returned as tool content so the
// client sees actionable details rather than a transport failure.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use it for errors the caller can fix (bad parameters, unknown ids); system
// failures stay Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	body, _ := json.Marshal(ErrorResponse{Error: true, Code: code, Message: message})
	result := mcp.NewToolResultText(string(body))
	result.IsError = true
	return result
}

func trimString(s string) string {
	return strings.TrimSpace(s)
}
