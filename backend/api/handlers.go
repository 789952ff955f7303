package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/intentlabs/transformd/shared/fault"
)

type messageRequest struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeMessage(w, r)
	if !ok {
		return
	}

	reply, err := s.manager.Start(r.Context(), req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, reply)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeMessage(w, r)
	if !ok {
		return
	}

	reply, err := s.manager.Continue(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.manager.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	log, err := s.manager.MessageLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"messages": log})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": stats,
	})
}

func (s *Server) decodeMessage(w http.ResponseWriter, r *http.Request) (*messageRequest, bool) {
	var req messageRequest
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Kind:    string(fault.KindValidationFailed),
			Message: "request body must be JSON with a message field",
		})
		return nil, false
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Kind:    string(fault.KindValidationFailed),
			Message: "message must not be empty",
		})
		return nil, false
	}
	return &req, true
}

// writeError maps the fault taxonomy to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case fault.KindSessionNotFound:
		status = http.StatusNotFound
	case fault.KindSessionTerminal:
		status = http.StatusConflict
	case fault.KindValidationFailed:
		status = http.StatusUnprocessableEntity
	case fault.KindStoreUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", slog.String("error", err.Error()))
	}
	s.writeJSON(w, status, errorResponse{Kind: string(kind), Message: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response", slog.String("error", err.Error()))
	}
}
