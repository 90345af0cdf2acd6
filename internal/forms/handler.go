package forms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/moleary1107/etownz-grants-sub007/internal/identity"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// SessionGetter is the read side used for ownership checks.
type SessionGetter interface {
	GetSession(ctx context.Context, id string) (*Session, error)
}

// Handler handles HTTP requests for sessions and interactions
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new forms handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// CreateSession handles POST /sessions requests
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user context", http.StatusUnauthorized)
		return
	}
	req.UserID = userID

	session, err := h.service.CreateSession(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// GetSession handles GET /sessions/{sessionID} requests
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := LoadOwnedSession(w, r, h.service, h.logger, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// PatchSession handles PATCH /sessions/{sessionID} requests
func (h *Handler) PatchSession(w http.ResponseWriter, r *http.Request) {
	session, ok := LoadOwnedSession(w, r, h.service, h.logger, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}

	var patch SessionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.service.PatchSession(r.Context(), session.ID, patch)
	if err != nil {
		h.logger.Warn("failed to patch session", "session_id", session.ID, "error", err)
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// TrackInteraction handles POST /sessions/{sessionID}/interactions requests
func (h *Handler) TrackInteraction(w http.ResponseWriter, r *http.Request) {
	session, ok := LoadOwnedSession(w, r, h.service, h.logger, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}

	var req TrackInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.SessionID = session.ID

	interaction, err := h.service.TrackInteraction(r.Context(), &req)
	if err != nil {
		h.logger.Warn("failed to track interaction", "session_id", session.ID, "error", err)
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, interaction)
}

// ListInteractionsResponse is the response for listing interactions
type ListInteractionsResponse struct {
	Interactions []Interaction `json:"interactions"`
	Count        int           `json:"count"`
}

// ListInteractions handles GET /sessions/{sessionID}/interactions requests
func (h *Handler) ListInteractions(w http.ResponseWriter, r *http.Request) {
	session, ok := LoadOwnedSession(w, r, h.service, h.logger, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}

	interactions, err := h.service.ListInteractions(r.Context(), session.ID)
	if err != nil {
		h.logger.Error("failed to list interactions", "session_id", session.ID, "error", err)
		http.Error(w, "failed to list interactions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ListInteractionsResponse{Interactions: interactions, Count: len(interactions)})
}

// LoadOwnedSession fetches the session and verifies the caller owns it. On
// failure it writes the response and returns false.
func LoadOwnedSession(w http.ResponseWriter, r *http.Request, getter SessionGetter, logger *logging.Logger, sessionID string) (*Session, bool) {
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return nil, false
	}
	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user context", http.StatusUnauthorized)
		return nil, false
	}

	session, err := getter.GetSession(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) && logger != nil {
			logger.Error("failed to load session", "session_id", sessionID, "error", err)
		}
		WriteError(w, err)
		return nil, false
	}
	if session.UserID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return session, true
}

// WriteError maps forms errors onto HTTP status codes.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
