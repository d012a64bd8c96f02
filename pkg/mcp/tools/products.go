package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

type productSummary struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Code             string   `json:"code"`
	Category         string   `json:"category,omitempty"`
	ShortDescription string   `json:"short_description"`
	TargetIndustries []string `json:"target_industries"`
	PainPointsSolved []string `json:"pain_points_solved"`
	KeyFeatures      []string `json:"key_features"`
	PriceRange       string   `json:"price_range,omitempty"`
}

// RegisterProductTools registers list_products.
func RegisterProductTools(s *server.MCPServer, deps *Deps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"List active catalogue products ordered by priority. " +
				"Filter by target industry or a search term over name and descriptions.",
		),
		mcp.WithString("industry", mcp.Description("Target industry")),
		mcp.WithString("search", mcp.Description("Search term")),
	}, readOnly()...)
	tool := mcp.NewTool("list_products", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scoped, cleanup, err := withUserScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		products, err := deps.Products.List(scoped, models.ProductFilter{
			Industry:   trimString(req.GetString("industry", "")),
			Search:     trimString(req.GetString("search", "")),
			ActiveOnly: true,
		})
		if err != nil {
			return serviceResult(err, "product")
		}

		out := make([]productSummary, 0, len(products))
		for _, p := range products {
			out = append(out, productSummary{
				ID:               p.ID.String(),
				Name:             p.Name,
				Code:             p.Code,
				Category:         p.CategoryName,
				ShortDescription: p.ShortDescription,
				TargetIndustries: p.TargetIndustries,
				PainPointsSolved: p.PainPointsSolved,
				KeyFeatures:      p.FeatureNames(5),
				PriceRange:       p.PriceRange,
			})
		}
		return jsonResult(struct {
			Products []productSummary `json:"products"`
			Count    int              `json:"count"`
		}{out, len(out)})
	})
}
