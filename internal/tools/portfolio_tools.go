package tools

import (
	"context"

	"github.com/atelier-ai/atelier/internal/store"
)

func (r *Registry) listPortfolioTool() *Tool {
	return &Tool{
		Name:        "list_portfolio",
		Description: "List portfolio pieces, optionally filtered by status (sketch, wip, completed).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"sketch", "wip", "completed"},
					"description": "Only list pieces with this status",
				},
			},
		},
		Domains: []Domain{DomainPortfolio},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			pieces, err := r.store.ListPieces(ctx, store.PieceStatus(stringArg(args, "status")))
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{
				"pieces": pieces,
				"count":  len(pieces),
			})
		},
	}
}

func (r *Registry) addPortfolioPieceTool() *Tool {
	return &Tool{
		Name:        "add_portfolio_piece",
		Description: "Add a work to the portfolio. New pieces start as sketches unless stated otherwise.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Piece title",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Description of the work",
				},
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"sketch", "wip", "completed"},
					"description": "Starting status (default sketch)",
				},
				"project_id": map[string]any{
					"type":        "string",
					"description": "Project this piece came from, if any",
				},
			},
			"required": []string{"title"},
		},
		Domains: []Domain{DomainPortfolio},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			p, err := r.store.AddPiece(ctx, store.PieceInput{
				Title:       args["title"].(string),
				Description: stringArg(args, "description"),
				Status:      store.PieceStatus(stringArg(args, "status")),
				ProjectID:   stringArg(args, "project_id"),
			})
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{"piece": p})
		},
	}
}

func (r *Registry) updatePortfolioPieceTool() *Tool {
	return &Tool{
		Name:        "update_portfolio_piece",
		Description: "Update a portfolio piece. Completed pieces keep their status and image; only title and description stay editable.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"piece_id": map[string]any{
					"type":        "string",
					"description": "The piece id",
				},
				"title": map[string]any{
					"type":        "string",
					"description": "New title",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "New description",
				},
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"sketch", "wip", "completed"},
					"description": "New status",
				},
			},
			"required": []string{"piece_id"},
		},
		Domains: []Domain{DomainPortfolio},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			var up store.PieceUpdate
			if s, ok := args["title"].(string); ok {
				up.Title = &s
			}
			if s, ok := args["description"].(string); ok {
				up.Description = &s
			}
			if s, ok := args["status"].(string); ok && s != "" {
				status := store.PieceStatus(s)
				up.Status = &status
			}
			p, err := r.store.UpdatePiece(ctx, args["piece_id"].(string), up)
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{"piece": p})
		},
	}
}

func (r *Registry) addProgressImageTool() *Tool {
	return &Tool{
		Name:        "add_progress_image",
		Description: "Attach a stored image to a portfolio piece. A sketch with a progress image becomes a work in progress.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"piece_id": map[string]any{
					"type":        "string",
					"description": "The piece id",
				},
				"image_path": map[string]any{
					"type":        "string",
					"description": "Path of the stored image",
				},
			},
			"required": []string{"piece_id", "image_path"},
		},
		Domains: []Domain{DomainPortfolio},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			p, err := r.store.AddProgressImage(ctx, args["piece_id"].(string), args["image_path"].(string))
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{"piece": p})
		},
	}
}

func (r *Registry) portfolioStatsTool() *Tool {
	return &Tool{
		Name:        "portfolio_stats",
		Description: "Summarize the portfolio: totals per status and how many pieces have images.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Domains: []Domain{DomainPortfolio},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			stats, err := r.store.Stats(ctx)
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{"stats": stats})
		},
	}
}

func (r *Registry) completeProjectTool() *Tool {
	return &Tool{
		Name:        "complete_project",
		Description: "Mark a project completed and file the finished work as a completed portfolio piece in one step.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"project_id": map[string]any{
					"type":        "string",
					"description": "The project id",
				},
				"piece_title": map[string]any{
					"type":        "string",
					"description": "Title for the portfolio piece (default: the project title)",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Description for the portfolio piece",
				},
			},
			"required": []string{"project_id"},
		},
		Domains: []Domain{DomainProjects, DomainPortfolio},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			project, piece, err := r.store.CompleteProject(ctx, args["project_id"].(string), store.PieceInput{
				Title:       stringArg(args, "piece_title"),
				Description: stringArg(args, "description"),
			})
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{
				"project": project,
				"piece":   piece,
			})
		},
	}
}
