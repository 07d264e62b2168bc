package inspiration

import (
	"context"
	"strings"
)

// MockProvider serves a small themed catalog so the tool contract works
// offline and without credentials. Matching is keyword-based; an
// unmatched query returns a general selection.
type MockProvider struct{}

// NewMockProvider creates the offline provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

var mockCatalog = []struct {
	keywords []string
	result   Result
}{
	{
		keywords: []string{"watercolor", "wash", "wet"},
		result: Result{
			Title:   "Loose watercolor landscapes in three values",
			Source:  "mock",
			Summary: "Limiting a wash study to three values keeps loose landscapes readable.",
		},
	},
	{
		keywords: []string{"watercolor", "botanical", "flower", "floral"},
		result: Result{
			Title:   "Botanical studies with granulating pigments",
			Source:  "mock",
			Summary: "Granulating blues and earth tones add texture to petals without overworking.",
		},
	},
	{
		keywords: []string{"oil", "portrait", "skin"},
		result: Result{
			Title:   "Zorn palette portrait exercises",
			Source:  "mock",
			Summary: "Four pigments cover a surprising range of skin tones; a classic constraint study.",
		},
	},
	{
		keywords: []string{"linocut", "print", "relief", "block"},
		result: Result{
			Title:   "Two-block linocut prints with bold registration",
			Source:  "mock",
			Summary: "Simple registration jigs make two-color relief prints repeatable at home.",
		},
	},
	{
		keywords: []string{"abstract", "texture", "collage"},
		result: Result{
			Title:   "Layered collage grounds for abstract work",
			Source:  "mock",
			Summary: "Tissue and gesso grounds give abstract pieces depth before the first mark.",
		},
	},
	{
		keywords: []string{"sketch", "urban", "ink", "pen"},
		result: Result{
			Title:   "Urban sketching with a single fineliner",
			Source:  "mock",
			Summary: "One pen and a water brush is a whole travel kit; hatching carries the values.",
		},
	},
	{
		keywords: []string{"color", "palette", "harmony"},
		result: Result{
			Title:   "Limited palettes from a single mother color",
			Source:  "mock",
			Summary: "Mixing every hue through one mother color unifies a painting instantly.",
		},
	},
}

// Search returns catalog entries whose keywords appear in the query.
func (m *MockProvider) Search(_ context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}
	q := strings.ToLower(query)

	var results []Result
	for _, entry := range mockCatalog {
		for _, kw := range entry.keywords {
			if strings.Contains(q, kw) {
				results = append(results, entry.result)
				break
			}
		}
		if len(results) >= limit {
			break
		}
	}

	// Nothing matched: return a general selection rather than nothing.
	if len(results) == 0 {
		for _, entry := range mockCatalog[:min(limit, len(mockCatalog))] {
			results = append(results, entry.result)
		}
	}
	return results, nil
}
