package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/atelier-ai/atelier/internal/store"
)

// Supplies

func (s *Server) handleSuppliesList(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	supplies, err := s.store.ListSupplies(r.Context(), category)
	if err != nil {
		s.logger.Error("list supplies failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "list supplies failed")
		return
	}
	summary, err := s.store.SupplySummary(r.Context())
	if err != nil {
		s.logger.Error("supply summary failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "supply summary failed")
		return
	}
	writeJSON(w, map[string]any{
		"success":  true,
		"supplies": supplies,
		"summary":  summary,
		"count":    len(supplies),
	}, s.logger)
}

type supplyAddRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Brand    string `json:"brand,omitempty"`
	Color    string `json:"color,omitempty"`
	Level    string `json:"level,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

func (s *Server) handleSupplyAdd(w http.ResponseWriter, r *http.Request) {
	var req supplyAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Category == "" {
		s.errorResponse(w, http.StatusBadRequest, "name and category are required")
		return
	}
	level := store.LevelPlenty
	if req.Level != "" {
		parsed, err := store.ParseLevel(req.Level)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		level = parsed
	}

	sup, err := s.store.AddSupply(r.Context(), store.SupplyInput{
		Name:     req.Name,
		Category: req.Category,
		Brand:    req.Brand,
		Color:    req.Color,
		Level:    level,
		Notes:    req.Notes,
	})
	if err != nil {
		s.logger.Error("add supply failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "add supply failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"success": true, "supply": sup}, s.logger)
}

func (s *Server) handleLowStock(w http.ResponseWriter, r *http.Request) {
	low, err := s.store.LowStock(r.Context())
	if err != nil {
		s.logger.Error("low stock failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "low stock failed")
		return
	}
	writeJSON(w, map[string]any{
		"success":  true,
		"supplies": low,
		"count":    len(low),
	}, s.logger)
}

// maxUploadBytes caps image uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// handleSupplyScan accepts a multipart photo of supplies and stores it
// under the uploads directory. The stored path comes back so the
// caller (or a later chat turn) can reference it.
func (s *Server) handleSupplyScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.uploads, 0o755); err != nil {
		s.logger.Error("uploads dir", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "upload storage unavailable")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic":
	default:
		s.errorResponse(w, http.StatusBadRequest, "unsupported image type: "+ext)
		return
	}

	name := fmt.Sprintf("scan-%s%s", uuid.New().String(), ext)
	path := filepath.Join(s.uploads, name)
	dst, err := os.Create(path)
	if err != nil {
		s.logger.Error("create upload", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "upload storage unavailable")
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		s.logger.Error("write upload", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "upload failed")
		return
	}

	s.logger.Info("supply scan stored", "file", name, "bytes", header.Size)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{
		"success": true,
		"path":    path,
		"message": "Scan stored. Mention it in chat to have the contents added to inventory.",
	}, s.logger)
}

// Projects

func (s *Server) handleProjectsList(w http.ResponseWriter, r *http.Request) {
	var status store.ProjectStatus
	if q := r.URL.Query().Get("status"); q != "" {
		parsed, err := store.ParseProjectStatus(q)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}
	projects, err := s.store.ListProjects(r.Context(), status)
	if err != nil {
		s.logger.Error("list projects failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "list projects failed")
		return
	}
	summary, err := s.store.ProjectSummary(r.Context())
	if err != nil {
		s.logger.Error("project summary failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "project summary failed")
		return
	}
	writeJSON(w, map[string]any{
		"success":  true,
		"projects": projects,
		"summary":  summary,
		"count":    len(projects),
	}, s.logger)
}

// handlePlanImport ingests a markdown project plan, either as a raw
// text/markdown body or a multipart "plan" file.
func (s *Server) handlePlanImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "plan import not configured")
		return
	}

	var src []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid multipart upload")
			return
		}
		file, _, err := r.FormFile("plan")
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "plan file is required")
			return
		}
		defer file.Close()
		src, err = io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "read plan failed")
			return
		}
	} else {
		var err error
		src, err = io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "read plan failed")
			return
		}
	}
	if len(src) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "plan is empty")
		return
	}

	result, err := s.importer.Import(r.Context(), src)
	if err != nil {
		s.logger.Error("plan import failed", "error", err)
		s.errorResponse(w, http.StatusBadRequest, "plan import failed: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"success": true, "result": result}, s.logger)
}

// Portfolio

func (s *Server) handlePortfolioList(w http.ResponseWriter, r *http.Request) {
	var status store.PieceStatus
	if q := r.URL.Query().Get("status"); q != "" {
		parsed, err := store.ParsePieceStatus(q)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}
	pieces, err := s.store.ListPieces(r.Context(), status)
	if err != nil {
		s.logger.Error("list pieces failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "list pieces failed")
		return
	}
	writeJSON(w, map[string]any{
		"success": true,
		"pieces":  pieces,
		"count":   len(pieces),
	}, s.logger)
}

// handlePieceImage accepts a multipart progress photo for a portfolio
// piece, stores it under the uploads directory, and attaches the stored
// path. Attaching an image to a sketch promotes it to wip.
func (s *Server) handlePieceImage(w http.ResponseWriter, r *http.Request) {
	pieceID := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic":
	default:
		s.errorResponse(w, http.StatusBadRequest, "unsupported image type: "+ext)
		return
	}

	if err := os.MkdirAll(s.uploads, 0o755); err != nil {
		s.logger.Error("uploads dir", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "upload storage unavailable")
		return
	}
	name := fmt.Sprintf("piece-%s%s", uuid.New().String(), ext)
	path := filepath.Join(s.uploads, name)
	dst, err := os.Create(path)
	if err != nil {
		s.logger.Error("create upload", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "upload storage unavailable")
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		s.logger.Error("write upload", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "upload failed")
		return
	}

	piece, err := s.store.AddProgressImage(r.Context(), pieceID, path)
	if err != nil {
		os.Remove(path)
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.errorResponse(w, http.StatusNotFound, "no such piece")
		case errors.Is(err, store.ErrPieceFrozen):
			s.errorResponse(w, http.StatusConflict, "completed pieces keep their image")
		default:
			s.logger.Error("attach progress image failed", "piece", pieceID, "error", err)
			s.errorResponse(w, http.StatusInternalServerError, "attach image failed")
		}
		return
	}

	s.logger.Info("progress image stored", "piece", pieceID, "file", name, "bytes", header.Size)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"success": true, "piece": piece, "path": path}, s.logger)
}

func (s *Server) handlePortfolioStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("portfolio stats failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "portfolio stats failed")
		return
	}
	writeJSON(w, map[string]any{"success": true, "stats": stats}, s.logger)
}

// Dashboard

// handleDashboard aggregates everything the dashboard renders in one
// request: supply summary, low stock, active projects, portfolio stats,
// and recent tool activity.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := s.store.SupplySummary(ctx)
	if err != nil {
		s.dashboardError(w, "supply summary", err)
		return
	}
	low, err := s.store.LowStock(ctx)
	if err != nil {
		s.dashboardError(w, "low stock", err)
		return
	}
	projects, err := s.store.ListProjects(ctx, "")
	if err != nil {
		s.dashboardError(w, "projects", err)
		return
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.dashboardError(w, "portfolio stats", err)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = "default"
	}
	activity, err := s.sessions.RecentToolCalls(sessionID, parseIntParam(r, "activity", 10))
	if err != nil {
		s.logger.Warn("recent tool calls failed", "error", err)
	}

	writeJSON(w, map[string]any{
		"success":         true,
		"supply_summary":  summary,
		"low_stock":       low,
		"projects":        projects,
		"portfolio_stats": stats,
		"activity":        activity,
	}, s.logger)
}

func (s *Server) dashboardError(w http.ResponseWriter, what string, err error) {
	s.logger.Error("dashboard aggregation failed", "part", what, "error", err)
	s.errorResponse(w, http.StatusInternalServerError, "dashboard unavailable")
}
