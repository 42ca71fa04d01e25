package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gauravmishra2744/Awaaj/internal/analytics"
	"github.com/gauravmishra2744/Awaaj/internal/issues"
	"github.com/gauravmishra2744/Awaaj/internal/models"
	"github.com/gauravmishra2744/Awaaj/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server provides the REST API handlers.
type Server struct {
	svc     *issues.Service
	version string
}

// NewServer creates a new API server.
func NewServer(svc *issues.Service, version string) *Server {
	return &Server{svc: svc, version: version}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/issues", s.listIssues)
	mux.HandleFunc("POST /api/v1/issues", s.createIssue)
	mux.HandleFunc("GET /api/v1/issues/{id}", s.getIssue)
	mux.HandleFunc("PATCH /api/v1/issues/{id}", s.editIssue)
	mux.HandleFunc("DELETE /api/v1/issues/{id}", s.deleteIssue)
	mux.HandleFunc("PATCH /api/v1/issues/{id}/status", s.updateStatus)
	mux.HandleFunc("POST /api/v1/issues/{id}/upvote", s.upvoteIssue)
	mux.HandleFunc("POST /api/v1/issues/{id}/priority", s.recomputePriority)

	mux.HandleFunc("GET /api/v1/analytics/overview", s.analyticsOverview)
	mux.HandleFunc("GET /api/v1/analytics/category-heatmap", s.categoryHeatmap)
	mux.HandleFunc("GET /api/v1/analytics/ai-performance", s.aiPerformance)
	mux.HandleFunc("GET /api/v1/analytics/location-insights", s.locationInsights)

	mux.HandleFunc("GET /api/v1/health", s.health)

	return logMiddleware(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Warn("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody decodes a JSON request body into v. An empty body is allowed
// when optional is true.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return err
	}
	return nil
}

// --- Issues ---

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var sub models.Submission
	if err := decodeBody(r, &sub, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	out, err := s.svc.Submit(r.Context(), sub)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Issue submitted successfully",
		"issue":      out.Issue,
		"aiAnalysis": out.Enrichment,
	})
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.IssueListFilter{
		Category: q.Get("category"),
		Email:    q.Get("email"),
	}
	if v := q.Get("status"); v != "" {
		st, err := models.ParseIssueStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = st
	}
	if v := q.Get("priority"); v != "" {
		lvl, err := models.ParsePriorityLevel(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.PriorityLevel = lvl
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	list, err := s.svc.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) editIssue(w http.ResponseWriter, r *http.Request) {
	var patch issues.Patch
	if err := decodeBody(r, &patch, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	issue, changes, err := s.svc.Edit(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if changes == nil {
		changes = []models.FieldChange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"issue":   issue,
		"changes": changes,
	})
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	NewStatus string `json:"newStatus"`
	ChangedBy string `json:"changedBy"`
	Comment   string `json:"comment"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	status, err := models.ParseIssueStatus(req.NewStatus)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issue, err := s.svc.UpdateStatus(r.Context(), r.PathValue("id"), status, req.ChangedBy, req.Comment)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

type upvoteRequest struct {
	VoterID string `json:"voterId"`
}

func (s *Server) upvoteIssue(w http.ResponseWriter, r *http.Request) {
	var req upvoteRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	issue, added, err := s.svc.Upvote(r.Context(), r.PathValue("id"), strings.TrimSpace(req.VoterID))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"upvotes": issue.Upvotes,
		"added":   added,
		"issue":   issue,
	})
}

type priorityRequest struct {
	Factors *models.PriorityFactors `json:"factors"`
}

func (s *Server) recomputePriority(w http.ResponseWriter, r *http.Request) {
	var req priorityRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	issue, err := s.svc.RecomputePriority(r.Context(), r.PathValue("id"), req.Factors)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// --- Analytics ---

func (s *Server) analyticsOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.svc.Overview(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) categoryHeatmap(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "all" {
		category = ""
	}
	list, err := s.svc.List(r.Context(), store.IssueListFilter{Category: category})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.Heatmap(list, ""))
}

func (s *Server) aiPerformance(w http.ResponseWriter, r *http.Request) {
	perf, err := s.svc.AIPerformance(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perf)
}

func (s *Server) locationInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.svc.LocationInsights(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

// --- Health ---

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ai := "unavailable"
	if s.svc.AIHealthy(r.Context()) {
		ai = "healthy"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   s.version,
		"aiService": ai,
	})
}
