package recommendations

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// Handler serves recommendation listing and feedback.
type Handler struct {
	orchestrator *Orchestrator
	sessions     forms.SessionGetter
	logger       *logging.Logger
}

func NewHandler(orchestrator *Orchestrator, sessions forms.SessionGetter, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{orchestrator: orchestrator, sessions: sessions, logger: logger}
}

// PendingResponse lists recommendations awaiting feedback.
type PendingResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
	Count           int              `json:"count"`
}

// ListPending handles GET /sessions/{sessionID}/recommendations
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	session, ok := forms.LoadOwnedSession(w, r, h.sessions, h.logger, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}

	recs, err := h.orchestrator.Pending(r.Context(), session.ID)
	if err != nil {
		h.logger.Error("failed to list pending recommendations", "session_id", session.ID, "error", err)
		http.Error(w, "failed to list recommendations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, PendingResponse{Recommendations: recs, Count: len(recs)})
}

// ActionRequest is the body of a feedback call.
type ActionRequest struct {
	Action string `json:"action"`
}

// RecordAction handles POST /recommendations/{recommendationID}/action
func (h *Handler) RecordAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recommendationID")
	if id == "" {
		http.Error(w, "missing recommendation_id", http.StatusBadRequest)
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	action, err := ParseUserAction(req.Action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.orchestrator.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, id, err)
		return
	}
	if _, ok := forms.LoadOwnedSession(w, r, h.sessions, h.logger, rec.SessionID); !ok {
		return
	}

	updated, err := h.orchestrator.RecordAction(r.Context(), id, action)
	if err != nil {
		h.writeError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) writeError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "recommendation not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidAction):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("recommendation request failed", "recommendation_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
