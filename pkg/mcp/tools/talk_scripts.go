package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterTalkScriptTools registers get_talk_script and get_learning_context.
func RegisterTalkScriptTools(s *server.MCPServer, deps *Deps) {
	registerGetTalkScriptTool(s, deps)
	registerGetLearningContextTool(s, deps)
}

func registerGetTalkScriptTool(s *server.MCPServer, deps *Deps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Get a generated talk-script with its sections and the products it proposes. " +
				"Sales reps can read only their own scripts.",
		),
		mcp.WithString("talk_script_id", mcp.Required(), mcp.Description("Talk-script UUID")),
	}, readOnly()...)
	tool := mcp.NewTool("get_talk_script", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, bad := requireUUID(req, "talk_script_id")
		if bad != nil {
			return bad, nil
		}

		scoped, cleanup, err := withUserScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		script, err := deps.TalkScripts.Get(scoped, id)
		if err != nil {
			return serviceResult(err, "talk_script")
		}
		return jsonResult(script)
	})
}

func registerGetLearningContextTool(s *server.MCPServer, deps *Deps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Get lessons from recorded sales outcomes in an industry: what worked in won deals, " +
				"what to avoid from lost deals, and common customer objections.",
		),
		mcp.WithString("industry", mcp.Required(), mcp.Description("Industry to learn from")),
	}, readOnly()...)
	tool := mcp.NewTool("get_learning_context", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		industry, err := req.RequireString("industry")
		if err != nil || trimString(industry) == "" {
			return NewErrorResult("invalid_parameters", "industry is required"), nil
		}

		scoped, cleanup, err := withUserScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		lc, err := deps.Matching.LearningContext(scoped, trimString(industry))
		if err != nil {
			return serviceResult(err, "learning_context")
		}
		return jsonResult(lc)
	})
}
