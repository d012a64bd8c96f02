package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

const (
	defaultCompanyLimit = 20
	maxCompanyLimit     = 100
)

type companySummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Industry string `json:"industry,omitempty"`
	Status   string `json:"status"`
}

// RegisterCompanyTools registers list_companies and get_company.
func RegisterCompanyTools(s *server.MCPServer, deps *Deps) {
	registerListCompaniesTool(s, deps)
	registerGetCompanyTool(s, deps)
}

func registerListCompaniesTool(s *server.MCPServer, deps *Deps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"List target companies. Filter by name fragment or industry. " +
				"Returns ids for use with get_company and get_talk_script.",
		),
		mcp.WithString("name", mcp.Description("Case-insensitive fragment of the company name")),
		mcp.WithString("industry", mcp.Description("Exact industry")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20, max 100)")),
		mcp.WithNumber("offset", mcp.Description("Results to skip")),
	}, readOnly()...)
	tool := mcp.NewTool("list_companies", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scoped, cleanup, err := withUserScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		limit := req.GetInt("limit", defaultCompanyLimit)
		if limit <= 0 {
			limit = defaultCompanyLimit
		}
		if limit > maxCompanyLimit {
			limit = maxCompanyLimit
		}
		offset := req.GetInt("offset", 0)
		if offset < 0 {
			offset = 0
		}

		companies, total, err := deps.Companies.List(scoped, models.CompanyFilter{
			Name:     trimString(req.GetString("name", "")),
			Industry: trimString(req.GetString("industry", "")),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			return serviceResult(err, "company")
		}

		out := make([]companySummary, 0, len(companies))
		for _, c := range companies {
			out = append(out, companySummary{
				ID:       c.ID.String(),
				Name:     c.DisplayName(),
				Domain:   c.Domain,
				Industry: c.Industry,
				Status:   c.Status,
			})
		}
		return jsonResult(struct {
			Companies []companySummary `json:"companies"`
			Total     int              `json:"total"`
		}{out, total})
	})
}

func registerGetCompanyTool(s *server.MCPServer, deps *Deps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Get the structured profile of a company: business description, services, target market and pain points."),
		mcp.WithString("company_id", mcp.Required(), mcp.Description("Company UUID")),
	}, readOnly()...)
	tool := mcp.NewTool("get_company", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, bad := requireUUID(req, "company_id")
		if bad != nil {
			return bad, nil
		}

		scoped, cleanup, err := withUserScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		company, err := deps.Companies.Get(scoped, id)
		if err != nil {
			return serviceResult(err, "company")
		}
		// The raw page text is large and already summarised.
		company.MainContent = ""
		return jsonResult(company)
	})
}
