package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-pwm/internal/output"
)

const (
	// hardwareTimeout bounds a single request's I2C work.
	hardwareTimeout = 5 * time.Second

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	maxIDLen            = 128
)

// setStateRequest is the body of PUT /outputs/{id}/state.
type setStateRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// outputListResponse wraps the output list.
type outputListResponse struct {
	Outputs []output.Snapshot `json:"outputs"`
	Count   int               `json:"count"`
}

// handleListOutputs returns every configured output.
func (s *Server) handleListOutputs(w http.ResponseWriter, r *http.Request) {
	outputs := s.outputs.Outputs()
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := outputs[:0:0]
		for _, o := range outputs {
			if string(o.Kind) == kind {
				filtered = append(filtered, o)
			}
		}
		outputs = filtered
	}
	if outputs == nil {
		outputs = []output.Snapshot{}
	}
	writeJSON(w, http.StatusOK, outputListResponse{Outputs: outputs, Count: len(outputs)})
}

// handleGetOutput returns a single output's snapshot.
func (s *Server) handleGetOutput(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	snap, err := s.outputs.Output(id)
	if err != nil {
		writeOutputError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSetOutputState executes turn_on, turn_off or set_value.
func (s *Server) handleSetOutputState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	cmd, err := output.ParseCommand(req.Command, req.Parameters)
	if err != nil {
		writeOutputError(w, err)
		return
	}
	cmd.Source = output.SourceAPI

	ctx, cancel := context.WithTimeout(r.Context(), hardwareTimeout)
	defer cancel()

	snap, err := s.outputs.Execute(ctx, id, cmd)
	if err != nil {
		s.logger.Warn("output command failed",
			"output_id", id,
			"command", req.Command,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeOutputError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetOutputHistory returns recorded state changes, newest first.
func (s *Server) handleGetOutputHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "state history is not enabled")
		return
	}
	if _, err := s.outputs.Output(id); err != nil {
		writeOutputError(w, err)
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("reading output history failed", "output_id", id, "error", err)
		writeInternalError(w, "failed to read history")
		return
	}
	if entries == nil {
		entries = []output.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"output_id": id,
		"history":   entries,
		"count":     len(entries),
	})
}

// parseHistoryLimit validates the ?limit= query parameter.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return min(limit, maxHistoryLimit), nil
}

// pathID reads and bounds the {id} URL parameter.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxIDLen {
		writeBadRequest(w, "invalid id")
		return "", false
	}
	return id, true
}
