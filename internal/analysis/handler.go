package analysis

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// Handler exposes the analysis facade over HTTP.
type Handler struct {
	service  *Service
	sessions forms.SessionGetter
	logger   *logging.Logger
}

func NewHandler(service *Service, sessions forms.SessionGetter, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, sessions: sessions, logger: logger}
}

// Analyze handles POST /sessions/{sessionID}/analyze
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FormData == nil {
		http.Error(w, "form_data is required", http.StatusBadRequest)
		return
	}

	session, ok := forms.LoadOwnedSession(w, r, h.sessions, h.logger, sessionID)
	if !ok {
		return
	}

	result, err := h.service.Analyze(r.Context(), session, req.FormData, req.GrantSchemeID)
	if err != nil {
		if errors.Is(err, ErrMissingFormData) || errors.Is(err, ErrMissingSessionID) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("form analysis failed", "session_id", session.ID, "error", err)
		http.Error(w, "analysis failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetVisibility handles GET /sessions/{sessionID}/visibility
func (h *Handler) GetVisibility(w http.ResponseWriter, r *http.Request) {
	session, ok := forms.LoadOwnedSession(w, r, h.sessions, h.logger, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}

	visibility, err := h.service.Snapshot(r.Context(), session.ID)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			http.Error(w, "no analysis recorded for session", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load visibility snapshot", "session_id", session.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, visibility)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
