package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/atelier-ai/atelier/internal/store"
)

//go:embed templates/*.html
var templateFiles embed.FS

// templateFuncs provides helper functions available in all templates.
var templateFuncs = template.FuncMap{
	"markdown":   renderMarkdown,
	"levelBadge": levelBadge,
	"since":      since,
}

// loadTemplates parses the layout and each page template. Each page is
// a clone of the layout with the page blocks overridden. Panics on
// syntax errors so startup fails fast.
func loadTemplates() map[string]*template.Template {
	layout := template.Must(
		template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFiles, "templates/layout.html"),
	)

	pages := []string{"dashboard.html", "chat.html"}
	result := make(map[string]*template.Template, len(pages))

	for _, page := range pages {
		t := template.Must(layout.Clone())
		template.Must(t.ParseFS(templateFiles, "templates/"+page))
		result[page] = t
	}

	return result
}

// render executes a named template. Requests with the HX-Request header
// (htmx partials) get only the "content" block; everything else gets
// the full layout.
func (s *WebServer) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	t, ok := s.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	block := "layout.html"
	if r.Header.Get("HX-Request") == "true" {
		block = "content"
	}

	if err := t.ExecuteTemplate(w, block, data); err != nil {
		s.logger.Error("template render failed", "template", name, "block", block, "error", err)
	}
}

// renderMarkdown converts assistant markdown to HTML for chat bubbles.
func renderMarkdown(src string) template.HTML {
	var sb strings.Builder
	if err := goldmark.Convert([]byte(src), &sb); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(sb.String())
}

// levelBadge maps a supply level to a badge CSS class.
func levelBadge(level store.Level) string {
	switch level {
	case store.LevelEmpty:
		return "badge-empty"
	case store.LevelLow:
		return "badge-low"
	default:
		return "badge-plenty"
	}
}

// since renders a timestamp as a rough age.
func since(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}
