// Package web serves the studio dashboard and chat pages. Pages render
// server-side; htmx swaps panel partials when the event stream reports
// them stale.
package web

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/store"
)

// WebServer renders the HTML UI.
type WebServer struct {
	store     *store.Store
	sessions  *session.Store
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewWebServer creates the UI server.
func NewWebServer(st *store.Store, sessions *session.Store, logger *slog.Logger) *WebServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebServer{
		store:     st,
		sessions:  sessions,
		templates: loadTemplates(),
		logger:    logger,
	}
}

// RegisterRoutes mounts the UI on mux alongside the API routes.
func (s *WebServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /chat", s.handleChat)
	mux.HandleFunc("GET /panels/{panel}", s.handlePanel)
}

// DashboardData is the template context for the studio overview.
type DashboardData struct {
	ActiveNav     string
	SupplySummary map[store.Level]int
	LowStock      []store.Supply
	Projects      []store.Project
	Pieces        []store.PortfolioPiece
	Stats         *store.PortfolioStats
	Activity      []session.ToolCallRecord
}

func (s *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data, err := s.dashboardData(r)
	if err != nil {
		s.logger.Error("dashboard data failed", "error", err)
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "dashboard.html", data)
}

func (s *WebServer) dashboardData(r *http.Request) (*DashboardData, error) {
	ctx := r.Context()

	summary, err := s.store.SupplySummary(ctx)
	if err != nil {
		return nil, err
	}
	low, err := s.store.LowStock(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjects(ctx, "")
	if err != nil {
		return nil, err
	}
	pieces, err := s.store.ListPieces(ctx, "")
	if err != nil {
		return nil, err
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	activity, err := s.sessions.RecentToolCalls("default", 10)
	if err != nil {
		s.logger.Warn("activity unavailable", "error", err)
	}

	return &DashboardData{
		ActiveNav:     "dashboard",
		SupplySummary: summary,
		LowStock:      low,
		Projects:      projects,
		Pieces:        pieces,
		Stats:         stats,
		Activity:      activity,
	}, nil
}

// handlePanel rerenders a single dashboard panel for htmx swaps driven
// by panels_refresh events. Panel names match the refresh contract.
func (s *WebServer) handlePanel(w http.ResponseWriter, r *http.Request) {
	panel := r.PathValue("panel")
	data, err := s.dashboardData(r)
	if err != nil {
		s.logger.Error("panel data failed", "panel", panel, "error", err)
		http.Error(w, "panel unavailable", http.StatusInternalServerError)
		return
	}

	t := s.templates["dashboard.html"]
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "panel-"+panel, data); err != nil {
		s.logger.Error("panel render failed", "panel", panel, "error", err)
		http.Error(w, "no such panel", http.StatusNotFound)
	}
}

// ChatData is the template context for the chat page.
type ChatData struct {
	ActiveNav string
	SessionID string
	Entries   []session.Entry
}

func (s *WebServer) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = "default"
	}
	entries, err := s.sessions.Context(sessionID, 0)
	if err != nil {
		s.logger.Error("chat history failed", "session", sessionID, "error", err)
		http.Error(w, "chat unavailable", http.StatusInternalServerError)
		return
	}

	// Tool observations stay out of the transcript view.
	visible := entries[:0:0]
	for _, e := range entries {
		if e.Role == "user" || e.Role == "assistant" {
			visible = append(visible, e)
		}
	}

	s.render(w, r, "chat.html", &ChatData{
		ActiveNav: "chat",
		SessionID: sessionID,
		Entries:   visible,
	})
}
