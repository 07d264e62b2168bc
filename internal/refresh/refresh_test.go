package refresh

import (
	"reflect"
	"testing"

	"github.com/atelier-ai/atelier/internal/tools"
)

func TestPanelsFor(t *testing.T) {
	tests := []struct {
		name    string
		domains []tools.Domain
		want    []string
	}{
		{"none", nil, nil},
		{"supplies", []tools.Domain{tools.DomainSupplies},
			[]string{"low-stock-list", "supply-summary"}},
		{"projects", []tools.Domain{tools.DomainProjects},
			[]string{"projects-list"}},
		{"portfolio", []tools.Domain{tools.DomainPortfolio},
			[]string{"portfolio-grid", "portfolio-stats"}},
		{"duplicates collapse", []tools.Domain{tools.DomainSupplies, tools.DomainSupplies},
			[]string{"low-stock-list", "supply-summary"}},
		{"cross-domain", []tools.Domain{tools.DomainProjects, tools.DomainPortfolio},
			[]string{"portfolio-grid", "portfolio-stats", "projects-list"}},
		{"unknown domain ignored", []tools.Domain{tools.Domain("weather")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PanelsFor(tt.domains)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PanelsFor(%v) = %v, want %v", tt.domains, got, tt.want)
			}
		})
	}
}

func TestAllPanels(t *testing.T) {
	got := AllPanels()
	want := []string{"low-stock-list", "portfolio-grid", "portfolio-stats", "projects-list", "supply-summary"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllPanels() = %v, want %v", got, want)
	}
}
