// Package ingest imports markdown project plans into the studio store.
// A plan is an ordinary markdown file: the first heading is the project
// title, a "Medium:"/"Status:" metadata list sets fields, and bullets
// under a Materials (or Supplies) heading link inventory items.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/atelier-ai/atelier/internal/events"
	"github.com/atelier-ai/atelier/internal/store"
)

// Plan is a parsed project plan.
type Plan struct {
	Title     string
	Medium    string
	Status    store.ProjectStatus
	Notes     string
	Materials []string
}

// Result reports what an import created.
type Result struct {
	Project *store.Project `json:"project"`
	// Linked are the inventory supplies matched to plan materials.
	Linked []store.Supply `json:"linked"`
	// Missing are plan materials with no inventory match. They are noted
	// on the project so nothing silently disappears.
	Missing []string `json:"missing"`
}

// Importer turns plans into projects.
type Importer struct {
	store  *store.Store
	bus    *events.Bus
	logger *slog.Logger
}

// NewImporter creates an importer. bus may be nil.
func NewImporter(st *store.Store, bus *events.Bus, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: st, bus: bus, logger: logger}
}

// ImportFile imports the plan at path.
func (i *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return i.Import(ctx, src)
}

// Import parses the plan and creates the project, linking any materials
// that match inventory by name.
func (i *Importer) Import(ctx context.Context, src []byte) (*Result, error) {
	plan, err := ParsePlan(src)
	if err != nil {
		return nil, err
	}

	project, err := i.store.CreateProject(ctx, store.ProjectInput{
		Title:  plan.Title,
		Medium: plan.Medium,
		Status: plan.Status,
		Notes:  plan.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	result := &Result{Project: project}
	for _, material := range plan.Materials {
		matches, err := i.store.SearchSupplies(ctx, material)
		if err != nil {
			return nil, fmt.Errorf("match material %q: %w", material, err)
		}
		if len(matches) == 0 {
			result.Missing = append(result.Missing, material)
			continue
		}
		// First match wins; supersession keeps one live row per item.
		if err := i.store.LinkSupply(ctx, project.ID, matches[0].ID); err != nil {
			return nil, fmt.Errorf("link %q: %w", material, err)
		}
		result.Linked = append(result.Linked, matches[0])
	}

	if len(result.Missing) > 0 {
		note := "Plan needs: " + strings.Join(result.Missing, ", ")
		if _, err := i.store.AddProjectNote(ctx, project.ID, note); err != nil {
			i.logger.Warn("missing-materials note not added", "project", project.ID, "error", err)
		}
	}

	i.logger.Info("plan imported", "project", project.ID, "title", plan.Title,
		"linked", len(result.Linked), "missing", len(result.Missing))
	i.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceIngest,
		Kind:      events.KindPlanImported,
		Data: map[string]any{
			"project": project.ID,
			"title":   plan.Title,
			"linked":  len(result.Linked),
			"missing": len(result.Missing),
		},
	})
	return result, nil
}

// materialsHeadings are the section names whose bullets become supply links.
var materialsHeadings = map[string]bool{
	"materials": true,
	"supplies":  true,
}

// ParsePlan extracts a Plan from markdown source.
func ParsePlan(src []byte) (*Plan, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	plan := &Plan{}
	var notes []string
	inMaterials := false

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(nodeText(node, src))
			if plan.Title == "" && node.Level == 1 {
				plan.Title = title
				continue
			}
			inMaterials = materialsHeadings[strings.ToLower(title)]

		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				line := strings.TrimSpace(nodeText(item, src))
				if line == "" {
					continue
				}
				if inMaterials {
					plan.Materials = append(plan.Materials, line)
					continue
				}
				if !applyMetadata(plan, line) {
					notes = append(notes, line)
				}
			}

		case *ast.Paragraph:
			if line := strings.TrimSpace(nodeText(node, src)); line != "" {
				notes = append(notes, line)
			}
		}
	}

	if plan.Title == "" {
		return nil, fmt.Errorf("plan has no title heading")
	}
	plan.Notes = strings.Join(notes, "\n")
	return plan, nil
}

// applyMetadata consumes "Medium: oil" / "Status: in_progress" list
// items. Unknown keys and bad status values fall through to the notes.
func applyMetadata(plan *Plan, line string) bool {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return false
	}
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "medium":
		plan.Medium = value
		return true
	case "status":
		status, err := store.ParseProjectStatus(value)
		if err != nil {
			return false
		}
		plan.Status = status
		return true
	}
	return false
}

// nodeText collects the raw text under a node.
func nodeText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := c.(*ast.Text); ok {
				sb.Write(t.Segment.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
