package inspiration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMockProviderMatchesKeywords(t *testing.T) {
	m := NewMockProvider()

	got, err := m.Search(context.Background(), "loose watercolor ideas", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no results for watercolor query")
	}
	for _, r := range got {
		if r.Source != "mock" {
			t.Errorf("result source = %q, want mock", r.Source)
		}
	}
}

func TestMockProviderFallbackSelection(t *testing.T) {
	m := NewMockProvider()

	got, err := m.Search(context.Background(), "xyzzy", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("fallback returned %d results, want 3", len(got))
	}
}

func TestMockProviderRespectsLimit(t *testing.T) {
	m := NewMockProvider()
	got, _ := m.Search(context.Background(), "watercolor color sketch print", 2)
	if len(got) > 2 {
		t.Errorf("got %d results, limit was 2", len(got))
	}
}

func TestExtractHTML(t *testing.T) {
	raw := `<html><head><title>Gouache layering tips</title>
		<script>var x = 1;</script></head>
		<body><nav>menu</nav><p>Work light over dark.</p>
		<p>Let each layer dry fully.</p></body></html>`

	title, text := extractHTML(raw)
	if title != "Gouache layering tips" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(text, "Work light over dark.") {
		t.Errorf("text missing paragraph: %q", text)
	}
	if strings.Contains(text, "var x") {
		t.Error("script content leaked into text")
	}
	if strings.Contains(text, "menu") {
		t.Error("nav content leaked into text")
	}
}

func TestFirstWords(t *testing.T) {
	if got := firstWords("one two three four", 2); got != "one two…" {
		t.Errorf("firstWords = %q", got)
	}
	if got := firstWords("short", 10); got != "short" {
		t.Errorf("firstWords = %q", got)
	}
}

func TestHTTPProviderSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "seascape" {
			t.Errorf("query = %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"title": "Stormy seascapes in oils", "url": "https://example.com/a", "description": "palette knife water"},
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "tok", nil)
	got, err := p.Search(context.Background(), "seascape", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Stormy seascapes in oils" {
		t.Errorf("results = %+v", got)
	}
}

func TestHTTPProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "tok", nil)
	if _, err := p.Search(context.Background(), "anything", 5); err == nil {
		t.Fatal("want error on non-200")
	}
}
