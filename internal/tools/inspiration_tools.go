package tools

import (
	"context"
	"fmt"
)

func (r *Registry) searchInspirationTool() *Tool {
	return &Tool{
		Name:        "search_inspiration",
		Description: "Search curated inspiration (techniques, palettes, reference work) for a theme or medium. Read-only; touches no studio state.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Theme, medium, or technique to look for",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum results (default 5)",
				},
			},
			"required": []string{"query"},
		},
		// No domains: inspiration never dirties a dashboard panel.
		Domains: nil,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if r.inspo == nil {
				return "", fmt.Errorf("inspiration provider not configured")
			}
			limit := 5
			if f, ok := args["limit"].(float64); ok {
				limit = int(f)
			}
			results, err := r.inspo.Search(ctx, args["query"].(string), limit)
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{
				"results": results,
				"count":   len(results),
			})
		},
	}
}
