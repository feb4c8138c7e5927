package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/alienxp03/gempt/internal/core"
	"github.com/alienxp03/gempt/internal/session"
)

// handleSolveStream runs a session and reports each step and round as a
// server-sent event, ending with "complete" or "error".
func (h *Handler) handleSolveStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseSolveRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Streaming unsupported: ResponseWriter does not implement http.Flusher")
		h.jsonError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Callbacks run on the solving goroutine; writes stay serialized.
	var mu sync.Mutex
	send := func(eventType string, data interface{}) {
		mu.Lock()
		defer mu.Unlock()
		h.sendSSEEvent(w, flusher, eventType, data)
	}

	res, err := h.orch.SolveWithCallbacks(r.Context(), req, session.Callbacks{
		OnStep:  func(step core.Step) { send("step", step) },
		OnRound: func(round core.Round) { send("round", round) },
	})
	if err != nil {
		slog.Error("Streamed solve failed", "project_id", req.ProjectID, "error", err)
		send("error", map[string]string{"message": errUnexpected})
		return
	}

	send("complete", res)
}

// sendSSEEvent sends a server-sent event.
func (h *Handler) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		slog.Error("Failed to write SSE event", "error", err)
		return
	}
	flusher.Flush()
}
