// Package api implements the HTTP API: the chat endpoint the UI talks
// to, read/write endpoints for studio records, and the dashboard event
// stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-ai/atelier/internal/agent"
	"github.com/atelier-ai/atelier/internal/buildinfo"
	"github.com/atelier-ai/atelier/internal/events"
	"github.com/atelier-ai/atelier/internal/ingest"
	"github.com/atelier-ai/atelier/internal/refresh"
	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/store"
)

// TurnRunner is the loop surface the API needs. Narrow so tests can
// fake a turn without a reasoning model.
type TurnRunner interface {
	RunTurn(ctx context.Context, sessionID, message string) (*agent.TurnResult, error)
}

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	loop     TurnRunner
	store    *store.Store
	sessions *session.Store
	importer *ingest.Importer
	bus      *events.Bus
	uploads  string
	logger   *slog.Logger
	server   *http.Server
	ui       UIRegistrar
}

// UIRegistrar lets the web layer mount its pages on the API mux.
type UIRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// NewServer creates an API server. importer and bus may be nil; the
// corresponding endpoints then report unavailable.
func NewServer(address string, port int, loop TurnRunner, st *store.Store,
	sessions *session.Store, importer *ingest.Importer, bus *events.Bus,
	uploadsDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:  address,
		port:     port,
		loop:     loop,
		store:    st,
		sessions: sessions,
		importer: importer,
		bus:      bus,
		uploads:  uploadsDir,
		logger:   logger,
	}
}

// SetUI attaches the HTML UI, which registers its routes when the
// server starts.
func (s *Server) SetUI(ui UIRegistrar) {
	s.ui = ui
}

// Routes builds the request mux. Exposed so tests and the web layer can
// mount it without binding a socket.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /api/chat", s.handleChat)

	// Supplies
	mux.HandleFunc("GET /api/supplies", s.handleSuppliesList)
	mux.HandleFunc("POST /api/supplies", s.handleSupplyAdd)
	mux.HandleFunc("GET /api/supplies/low-stock", s.handleLowStock)
	mux.HandleFunc("POST /api/supplies/scan", s.handleSupplyScan)

	// Projects
	mux.HandleFunc("GET /api/projects", s.handleProjectsList)
	mux.HandleFunc("POST /api/projects/import", s.handlePlanImport)

	// Portfolio
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolioList)
	mux.HandleFunc("GET /api/portfolio/stats", s.handlePortfolioStats)
	mux.HandleFunc("POST /api/portfolio/{id}/image", s.handlePieceImage)

	// Dashboard
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	// Health
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Start begins serving HTTP requests and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	mux := s.Routes()
	if s.ui != nil {
		s.ui.RegisterRoutes(mux)
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Chat turns can take a while
	}
	s.logger.Info("starting API server", "address", s.address, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// writeJSON encodes v as JSON to w. Errors here usually mean the client
// went away mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"success": false,
		"error":   message,
	}, s.logger)
}

// ChatRequest is the chat endpoint input.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is the chat endpoint output. Refresh lists the dashboard
// panels made stale by this turn.
type ChatResponse struct {
	Success   bool                   `json:"success"`
	SessionID string                 `json:"session_id"`
	Response  string                 `json:"response"`
	ToolCalls []agent.ToolInvocation `json:"tool_calls,omitempty"`
	Refresh   []string               `json:"refresh,omitempty"`
	Exhausted bool                   `json:"exhausted,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	result, err := s.loop.RunTurn(r.Context(), sessionID, req.Message)
	if err != nil {
		var terr *agent.TurnError
		if errors.As(err, &terr) {
			// Turn-level failures still answer the user, with an apology
			// instead of a result.
			s.logger.Error("turn failed", "session", sessionID, "kind", terr.Kind, "error", terr.Err)
			writeJSON(w, ChatResponse{
				Success:   false,
				SessionID: sessionID,
				Response:  terr.Answer,
			}, s.logger)
			return
		}
		s.logger.Error("turn failed", "session", sessionID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "chat turn failed")
		return
	}

	panels := refresh.PanelsFor(result.Touched)
	if len(panels) > 0 {
		s.bus.Publish(events.Event{
			Timestamp: time.Now(),
			Source:    events.SourceAPI,
			Kind:      events.KindPanelsRefresh,
			Data:      map[string]any{"session": sessionID, "panels": panels},
		})
	}

	writeJSON(w, ChatResponse{
		Success:   true,
		SessionID: sessionID,
		Response:  result.Answer,
		ToolCalls: result.ToolCalls,
		Refresh:   panels,
		Exhausted: result.Exhausted,
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "healthy",
		"uptime": buildinfo.Uptime().Round(time.Second).String(),
	}, s.logger)
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
