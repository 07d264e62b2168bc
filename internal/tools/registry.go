package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atelier-ai/atelier/internal/inspiration"
	"github.com/atelier-ai/atelier/internal/store"
)

// Domain names an area of studio state a tool may touch. The agent
// accumulates domains from successful tool calls so the dashboard knows
// which panels are stale.
type Domain string

const (
	DomainSupplies  Domain = "supplies"
	DomainProjects  Domain = "projects"
	DomainPortfolio Domain = "portfolio"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	// Domains is the fixed, declared set of state areas this tool can
	// affect. Read-only tools declare their domain too so listings
	// refresh after writes elsewhere in the turn; purely external tools
	// declare none.
	Domains []Domain                                                        `json:"-"`
	Handler func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Result is the outcome of a successful tool execution.
type Result struct {
	Output  string
	Domains []Domain
}

// catalog is the authoritative list of tool identifiers. Registration
// is validated against it at startup: every identifier must have
// exactly one handler, and no handler may exist outside the catalog.
var catalog = []string{
	"list_supplies",
	"add_supply",
	"set_supply_level",
	"search_supplies",
	"low_stock_report",
	"list_projects",
	"create_project",
	"update_project_status",
	"add_project_note",
	"link_supply",
	"list_portfolio",
	"add_portfolio_piece",
	"update_portfolio_piece",
	"add_progress_image",
	"portfolio_stats",
	"complete_project",
	"search_inspiration",
}

// Registry holds the available tools.
type Registry struct {
	tools  map[string]*Tool
	store  *store.Store
	inspo  inspiration.Provider
	logger *slog.Logger
}

// NewRegistry creates the tool registry and validates it against the
// catalog. A declared tool without a handler, a duplicate registration,
// or a stray handler outside the catalog fails construction.
func NewRegistry(st *store.Store, inspo inspiration.Provider, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		store:  st,
		inspo:  inspo,
		logger: logger,
	}

	if err := r.registerBuiltins(); err != nil {
		return nil, err
	}

	for _, name := range catalog {
		if _, ok := r.tools[name]; !ok {
			return nil, fmt.Errorf("tool %q declared in catalog but has no handler", name)
		}
	}
	if len(r.tools) != len(catalog) {
		for name := range r.tools {
			if !inCatalog(name) {
				return nil, fmt.Errorf("tool %q registered but not declared in catalog", name)
			}
		}
	}
	return r, nil
}

func inCatalog(name string) bool {
	for _, c := range catalog {
		if c == name {
			return true
		}
	}
	return false
}

func (r *Registry) registerBuiltins() error {
	register := []func() *Tool{
		r.listSuppliesTool,
		r.addSupplyTool,
		r.setSupplyLevelTool,
		r.searchSuppliesTool,
		r.lowStockReportTool,
		r.listProjectsTool,
		r.createProjectTool,
		r.updateProjectStatusTool,
		r.addProjectNoteTool,
		r.linkSupplyTool,
		r.listPortfolioTool,
		r.addPortfolioPieceTool,
		r.updatePortfolioPieceTool,
		r.addProgressImageTool,
		r.portfolioStatsTool,
		r.completeProjectTool,
		r.searchInspirationTool,
	}
	for _, f := range register {
		if err := r.register(f()); err != nil {
			return err
		}
	}
	return nil
}

// register adds a tool, rejecting duplicates.
func (r *Registry) register(t *Tool) error {
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q registered twice", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the catalog order.
func (r *Registry) Names() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// List returns all tools in provider format, in stable catalog order.
func (r *Registry) List() []map[string]any {
	result := make([]map[string]any, 0, len(catalog))
	for _, name := range catalog {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name with the given JSON arguments. Input is
// validated against the tool's declared schema before the handler runs,
// so a validation failure never touches the store. Store-rule
// violations (unknown ids, frozen pieces, backward status moves) come
// back as *ValidationError; persistence failures as *StoreError.
func (r *Registry) Execute(ctx context.Context, name string, argsJSON string) (*Result, error) {
	tool := r.tools[name]
	if tool == nil {
		return nil, &ErrToolUnavailable{ToolName: name}
	}

	var args map[string]any
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, &ValidationError{Tool: name, Reason: fmt.Sprintf("arguments are not valid JSON: %v", err)}
		}
	}

	if verr := validateArgs(tool, args); verr != nil {
		return nil, verr
	}

	r.logger.Debug("executing tool", "tool", name, "session", SessionIDFromContext(ctx))
	output, err := tool.Handler(ctx, args)
	if err != nil {
		return nil, r.classify(name, err)
	}

	domains := make([]Domain, len(tool.Domains))
	copy(domains, tool.Domains)
	return &Result{Output: output, Domains: domains}, nil
}

// classify maps handler errors to the tool error taxonomy. Rule
// violations are validation problems the agent can correct; anything
// else from a state-touching tool is a StoreError. External tools
// (no declared domains) fail with plain errors so their outages never
// count toward store-failure escalation.
func (r *Registry) classify(name string, err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	if t := r.tools[name]; t != nil && len(t.Domains) == 0 {
		return fmt.Errorf("%s: %w", name, err)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &ValidationError{Tool: name, Field: "id", Reason: "no such record"}
	case errors.Is(err, store.ErrStatusBackward):
		return &ValidationError{Tool: name, Field: "status", Reason: "status only moves forward; pass reset to move it back"}
	case errors.Is(err, store.ErrPieceFrozen):
		return &ValidationError{Tool: name, Field: "status", Reason: "completed pieces keep their status and image"}
	default:
		return &StoreError{Tool: name, Op: "execute", Err: err}
	}
}
