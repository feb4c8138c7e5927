// Package handlers provides the HTTP JSON API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alienxp03/gempt/internal/core"
	"github.com/alienxp03/gempt/internal/export"
	"github.com/alienxp03/gempt/internal/oracle"
	"github.com/alienxp03/gempt/internal/session"
	"github.com/alienxp03/gempt/internal/storage"
)

const (
	// maxUploadSize bounds a solve request body (image plus form fields).
	maxUploadSize = 20 << 20

	// requestTimeout bounds every request; a full debate may take minutes.
	requestTimeout = 30 * time.Minute

	errUnexpected = "An unexpected error occurred."
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	orch        *session.Orchestrator
	registry    *oracle.Registry
	healthCache *healthCache
}

// New creates a new Handler.
func New(orch *session.Orchestrator, registry *oracle.Registry) *Handler {
	return &Handler{
		orch:        orch,
		registry:    registry,
		healthCache: newHealthCache(),
	}
}

// Routes returns the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Post("/solve", h.handleSolve)
		r.Post("/solve/stream", h.handleSolveStream)
		r.Get("/scores/{projectID}", h.handleScores)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.handleListSessions)
			r.Get("/{id}", h.handleGetSession)
			r.Delete("/{id}", h.handleDeleteSession)
			r.Get("/{id}/export/{format}", h.handleExportSession)
		})

		r.Get("/oracles", h.handleOracles)
		r.Get("/oracles/{name}/health", h.handleOracleHealth)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.json(w, map[string]string{"status": "ok"})
}

// parseSolveRequest reads the multipart form. It writes the error response
// itself and returns false on failure.
func (h *Handler) parseSolveRequest(w http.ResponseWriter, r *http.Request) (session.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.jsonError(w, "invalid multipart form", http.StatusBadRequest)
		return session.Request{}, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.jsonError(w, "No image file provided.", http.StatusBadRequest)
		return session.Request{}, false
	}
	defer file.Close()

	media, err := core.ReadMedia(header.Filename, file)
	if err != nil {
		h.jsonError(w, "No image file provided.", http.StatusBadRequest)
		return session.Request{}, false
	}

	return session.Request{
		ProjectID:     r.FormValue("project_id"),
		Question:      r.FormValue("question"),
		Dialect:       r.FormValue("dialect"),
		Media:         media,
		SkipKnowledge: r.FormValue("skip_knowledge") == "true",
		SkipSummary:   r.FormValue("skip_summary") == "true",
	}, true
}

func (h *Handler) handleSolve(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseSolveRequest(w, r)
	if !ok {
		return
	}

	res, err := h.orch.Solve(r.Context(), req)
	if err != nil {
		if errors.Is(err, session.ErrUnknownDialect) {
			h.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Solve failed", "project_id", req.ProjectID, "error", err)
		h.jsonError(w, errUnexpected, http.StatusInternalServerError)
		return
	}

	h.json(w, res)
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	h.json(w, map[string]interface{}{
		"project_id": projectID,
		"scores":     h.orch.Scores(r.Context(), projectID),
	})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 {
		limit = 20
	}

	sessions, err := h.orch.List(limit, offset, r.URL.Query().Get("project_id"))
	if err != nil {
		slog.Error("Failed to list sessions", "error", err)
		h.jsonError(w, errUnexpected, http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []*core.SessionSummary{}
	}

	h.json(w, sessions)
}

// loadSession fetches a session or writes a 404/500 response.
func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (*core.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := h.orch.Get(id)
	if errors.Is(err, storage.ErrNotFound) {
		h.jsonError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		slog.Error("Failed to get session", "session_id", id, "error", err)
		h.jsonError(w, errUnexpected, http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	h.json(w, sess)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.orch.Delete(id)
	if errors.Is(err, storage.ErrNotFound) {
		h.jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, session.ErrSessionRunning) {
		h.jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		slog.Error("Failed to delete session", "session_id", id, "error", err)
		h.jsonError(w, errUnexpected, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExportSession(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	exporter, err := export.GetExporter(export.Format(format))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	filename := export.GenerateFilename(sess, exporter.FileExtension())
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	if err := exporter.Export(sess, w); err != nil {
		slog.Error("Export failed", "session_id", sess.ID, "format", format, "error", err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
	}
}

type oracleInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

func (h *Handler) handleOracles(w http.ResponseWriter, r *http.Request) {
	oracles := h.registry.List()
	result := make([]oracleInfo, 0, len(oracles))
	for _, o := range oracles {
		result = append(result, oracleInfo{Name: o.Name(), Available: o.Available()})
	}

	h.json(w, map[string]interface{}{
		"oracles": result,
	})
}

func (h *Handler) handleOracleHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	o, err := h.registry.Get(name)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	h.json(w, h.healthCache.check(r.Context(), o, r.URL.Query().Get("refresh") == "true"))
}

// Helper methods

func (h *Handler) json(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
