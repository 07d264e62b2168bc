// Package refresh maps the state domains a turn touched to the
// dashboard panels that must re-render. The mapping is the contract
// between the agent loop and the UI: panels never refresh
// speculatively, only when a successful tool call dirtied their domain.
package refresh

import (
	"sort"

	"github.com/atelier-ai/atelier/internal/tools"
)

// Panel identifiers the dashboard understands.
const (
	PanelSupplySummary  = "supply-summary"
	PanelLowStockList   = "low-stock-list"
	PanelProjectsList   = "projects-list"
	PanelPortfolioGrid  = "portfolio-grid"
	PanelPortfolioStats = "portfolio-stats"
)

var panelsByDomain = map[tools.Domain][]string{
	tools.DomainSupplies:  {PanelSupplySummary, PanelLowStockList},
	tools.DomainProjects:  {PanelProjectsList},
	tools.DomainPortfolio: {PanelPortfolioGrid, PanelPortfolioStats},
}

// PanelsFor returns the sorted, de-duplicated panel list for a set of
// touched domains. No domains means no panels: a turn that only talked
// never triggers a refresh.
func PanelsFor(domains []tools.Domain) []string {
	if len(domains) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var panels []string
	for _, d := range domains {
		for _, p := range panelsByDomain[d] {
			if !seen[p] {
				seen[p] = true
				panels = append(panels, p)
			}
		}
	}
	sort.Strings(panels)
	return panels
}

// AllPanels returns every known panel, sorted. The dashboard uses it
// for a full initial render.
func AllPanels() []string {
	return PanelsFor([]tools.Domain{
		tools.DomainSupplies,
		tools.DomainProjects,
		tools.DomainPortfolio,
	})
}
