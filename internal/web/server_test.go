package web

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/store"
	_ "modernc.org/sqlite"
)

func newTestWeb(t *testing.T) (*WebServer, *store.Store, *session.Store) {
	t.Helper()

	open := func(name string) *sql.DB {
		db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), name))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { db.Close() })
		return db
	}

	st, err := store.NewWithDB(open("studio.db"))
	if err != nil {
		t.Fatal(err)
	}
	sessions, err := session.NewWithDB(open("sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	return NewWebServer(st, sessions, nil), st, sessions
}

func get(t *testing.T, s *WebServer, path string, hx bool) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	req := httptest.NewRequest("GET", path, nil)
	if hx {
		req.Header.Set("HX-Request", "true")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestDashboardRendersPanels(t *testing.T) {
	s, st, _ := newTestWeb(t)
	ctx := context.Background()
	st.AddSupply(ctx, store.SupplyInput{Name: "Ultramarine", Category: "paint", Level: store.LevelLow})
	st.CreateProject(ctx, store.ProjectInput{Title: "Night Harbor"})

	rec := get(t, s, "/", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, id := range []string{"supply-summary", "low-stock-list", "projects-list", "portfolio-grid", "portfolio-stats"} {
		if !strings.Contains(body, `id="`+id+`"`) {
			t.Errorf("dashboard missing panel %q", id)
		}
	}
	if !strings.Contains(body, "Night Harbor") {
		t.Error("project title not rendered")
	}
	if !strings.Contains(body, "<html") {
		t.Error("full page request should include the layout")
	}
}

func TestDashboardPartialForHTMX(t *testing.T) {
	s, _, _ := newTestWeb(t)
	rec := get(t, s, "/", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<html") {
		t.Error("HX-Request should render only the content block")
	}
}

func TestPanelEndpoint(t *testing.T) {
	s, st, _ := newTestWeb(t)
	st.AddSupply(context.Background(), store.SupplyInput{Name: "Masking fluid", Category: "medium", Level: store.LevelEmpty})

	rec := get(t, s, "/panels/low-stock-list", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Masking fluid") || strings.Contains(body, "<html") {
		t.Errorf("panel body = %q", body)
	}
}

func TestChatPageRendersMarkdown(t *testing.T) {
	s, _, sessions := newTestWeb(t)
	sessions.Append("default", "user", "what's low?")
	sessions.Append("default", "assistant", "You are low on **Ultramarine**.")
	sessions.AppendToolResult("default", "low_stock_report", `{"count": 1}`)

	rec := get(t, s, "/chat", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<strong>Ultramarine</strong>") {
		t.Error("assistant markdown not rendered to HTML")
	}
	if strings.Contains(body, "low_stock_report") {
		t.Error("tool observations should not appear in the transcript view")
	}
}
