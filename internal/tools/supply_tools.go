package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atelier-ai/atelier/internal/store"
)

func (r *Registry) listSuppliesTool() *Tool {
	return &Tool{
		Name:        "list_supplies",
		Description: "List the supplies in the studio inventory, optionally filtered by category (e.g., paint, brushes, paper, canvas).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"description": "Only list supplies in this category",
				},
			},
		},
		Domains: []Domain{DomainSupplies},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			category, _ := args["category"].(string)
			supplies, err := r.store.ListSupplies(ctx, category)
			if err != nil {
				return "", err
			}
			summary, err := r.store.SupplySummary(ctx)
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{
				"supplies": supplies,
				"summary":  summary,
			})
		},
	}
}

func (r *Registry) addSupplyTool() *Tool {
	return &Tool{
		Name:        "add_supply",
		Description: "Add a supply to the inventory. Re-adding an item with the same name and brand replaces the old entry. Level is plenty, low, or empty; never a number.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Supply name (e.g., Titanium White)",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Category (e.g., paint, brushes, paper)",
				},
				"brand": map[string]any{
					"type":        "string",
					"description": "Brand, if known",
				},
				"color": map[string]any{
					"type":        "string",
					"description": "Color, for paints and similar",
				},
				"level": map[string]any{
					"type":        "string",
					"enum":        []string{"plenty", "low", "empty"},
					"description": "How much is on hand (default plenty)",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "Free-form notes",
				},
			},
			"required": []string{"name", "category"},
		},
		Domains: []Domain{DomainSupplies},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			level := store.LevelPlenty
			if s, ok := args["level"].(string); ok && s != "" {
				level = store.Level(s)
			}
			sup, err := r.store.AddSupply(ctx, store.SupplyInput{
				Name:     args["name"].(string),
				Category: args["category"].(string),
				Brand:    stringArg(args, "brand"),
				Color:    stringArg(args, "color"),
				Level:    level,
				Notes:    stringArg(args, "notes"),
			})
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{"supply": sup})
		},
	}
}

func (r *Registry) setSupplyLevelTool() *Tool {
	return &Tool{
		Name:        "set_supply_level",
		Description: "Update how much of a supply is left. Use when the artist says something is running low, used up, or restocked.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"supply_id": map[string]any{
					"type":        "string",
					"description": "The supply id from a previous listing or search",
				},
				"level": map[string]any{
					"type":        "string",
					"enum":        []string{"plenty", "low", "empty"},
					"description": "New level",
				},
			},
			"required": []string{"supply_id", "level"},
		},
		Domains: []Domain{DomainSupplies},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			sup, err := r.store.SetSupplyLevel(ctx,
				args["supply_id"].(string), store.Level(args["level"].(string)))
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{"supply": sup})
		},
	}
}

func (r *Registry) searchSuppliesTool() *Tool {
	return &Tool{
		Name:        "search_supplies",
		Description: "Search the inventory by name, brand, color, category, or notes.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search text",
				},
			},
			"required": []string{"query"},
		},
		Domains: []Domain{DomainSupplies},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			supplies, err := r.store.SearchSupplies(ctx, args["query"].(string))
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{
				"supplies": supplies,
				"count":    len(supplies),
			})
		},
	}
}

func (r *Registry) lowStockReportTool() *Tool {
	return &Tool{
		Name:        "low_stock_report",
		Description: "Report everything low or empty, empties first, as a shopping list.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Domains: []Domain{DomainSupplies},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			low, err := r.store.LowStock(ctx)
			if err != nil {
				return "", err
			}
			items := make([]map[string]any, 0, len(low))
			for _, s := range low {
				urgency := "soon"
				if s.Level == store.LevelEmpty {
					urgency = "now"
				}
				items = append(items, map[string]any{
					"name":     s.Name,
					"brand":    s.Brand,
					"category": s.Category,
					"level":    s.Level,
					"urgency":  urgency,
				})
			}
			return marshalResult(map[string]any{
				"shopping_list": items,
				"count":         len(items),
			})
		},
	}
}

// stringArg reads an optional string argument.
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// marshalResult renders a tool observation as compact JSON.
func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}
