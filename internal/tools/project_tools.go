package tools

import (
	"context"

	"github.com/atelier-ai/atelier/internal/store"
)

func (r *Registry) listProjectsTool() *Tool {
	return &Tool{
		Name:        "list_projects",
		Description: "List creative projects, optionally filtered by status (idea, in_progress, completed).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"idea", "in_progress", "completed"},
					"description": "Only list projects with this status",
				},
			},
		},
		Domains: []Domain{DomainProjects},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			status := store.ProjectStatus(stringArg(args, "status"))
			projects, err := r.store.ListProjects(ctx, status)
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{
				"projects": projects,
				"count":    len(projects),
			})
		},
	}
}

func (r *Registry) createProjectTool() *Tool {
	return &Tool{
		Name:        "create_project",
		Description: "Start tracking a new creative project. New projects begin as ideas unless the artist is already working on it.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Project title",
				},
				"medium": map[string]any{
					"type":        "string",
					"description": "Medium (e.g., oil, watercolor, linocut)",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "Initial notes or plan",
				},
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"idea", "in_progress"},
					"description": "Starting status (default idea)",
				},
			},
			"required": []string{"title"},
		},
		Domains: []Domain{DomainProjects},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			p, err := r.store.CreateProject(ctx, store.ProjectInput{
				Title:  args["title"].(string),
				Medium: stringArg(args, "medium"),
				Notes:  stringArg(args, "notes"),
				Status: store.ProjectStatus(stringArg(args, "status")),
			})
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{"project": p})
		},
	}
}

func (r *Registry) updateProjectStatusTool() *Tool {
	return &Tool{
		Name:        "update_project_status",
		Description: "Move a project to a new status. Status only moves forward (idea, in_progress, completed); set reset true only when the artist explicitly reopens a project.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"project_id": map[string]any{
					"type":        "string",
					"description": "The project id",
				},
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"idea", "in_progress", "completed"},
					"description": "New status",
				},
				"reset": map[string]any{
					"type":        "boolean",
					"description": "Allow moving backward (explicit reopen)",
				},
			},
			"required": []string{"project_id", "status"},
		},
		Domains: []Domain{DomainProjects},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			reset, _ := args["reset"].(bool)
			p, err := r.store.SetProjectStatus(ctx,
				args["project_id"].(string),
				store.ProjectStatus(args["status"].(string)), reset)
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{"project": p})
		},
	}
}

func (r *Registry) addProjectNoteTool() *Tool {
	return &Tool{
		Name:        "add_project_note",
		Description: "Append a dated note to a project's log (session notes, decisions, problems hit).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"project_id": map[string]any{
					"type":        "string",
					"description": "The project id",
				},
				"note": map[string]any{
					"type":        "string",
					"description": "Note text",
				},
			},
			"required": []string{"project_id", "note"},
		},
		Domains: []Domain{DomainProjects},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			p, err := r.store.AddProjectNote(ctx,
				args["project_id"].(string), args["note"].(string))
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{"project": p})
		},
	}
}

func (r *Registry) linkSupplyTool() *Tool {
	return &Tool{
		Name:        "link_supply",
		Description: "Record that a project uses a supply from the inventory.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"project_id": map[string]any{
					"type":        "string",
					"description": "The project id",
				},
				"supply_id": map[string]any{
					"type":        "string",
					"description": "The supply id",
				},
			},
			"required": []string{"project_id", "supply_id"},
		},
		Domains: []Domain{DomainProjects},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			projectID := args["project_id"].(string)
			if err := r.store.LinkSupply(ctx, projectID, args["supply_id"].(string)); err != nil {
				return "", err
			}
			linked, err := r.store.ProjectSupplies(ctx, projectID)
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{
				"project_id": projectID,
				"supplies":   linked,
			})
		},
	}
}
