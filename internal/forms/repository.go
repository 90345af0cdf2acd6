package forms

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	Create(ctx context.Context, req *CreateSessionRequest) (*Session, error)
	GetByID(ctx context.Context, id string) (*Session, error)
	// Patch writes only the non-nil fields of patch and returns the updated row.
	// When patch.ExpectedStatus is set and the stored status differs, nothing
	// is written and errStatusConflict is returned.
	Patch(ctx context.Context, id string, patch *SessionPatch) (*Session, error)
}

// InteractionLog is the append-only store of field interactions.
type InteractionLog interface {
	Insert(ctx context.Context, interaction *Interaction) error
	ListBySession(ctx context.Context, sessionID string) ([]Interaction, error)
	Summarize(ctx context.Context, sessionID string) (*InteractionSummary, error)
}

// InMemoryRepository keeps sessions in a map. Used for local runs and tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		sessions: make(map[string]*Session),
	}
}

// Create creates a new active session in memory
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &Session{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		GrantID:       req.GrantID,
		ApplicationID: req.ApplicationID,
		SessionType:   sessionTypeOrDefault(req.SessionType),
		Status:        StatusActive,
		StartedAt:     now,
		FieldsTotal:   req.FieldsTotal,
		UserAgent:     req.UserAgent,
		Metadata:      req.Metadata,
		UpdatedAt:     now,
	}

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	out := *session
	return &out, nil
}

// GetByID retrieves a session by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *session
	return &out, nil
}

// Patch applies a partial update.
func (r *InMemoryRepository) Patch(ctx context.Context, id string, patch *SessionPatch) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if patch.ExpectedStatus != nil && session.Status != *patch.ExpectedStatus {
		return nil, errStatusConflict
	}
	patch.apply(session)
	session.UpdatedAt = time.Now().UTC()
	out := *session
	return &out, nil
}

// InMemoryInteractionLog keeps interactions per session in arrival order.
type InMemoryInteractionLog struct {
	mu   sync.RWMutex
	logs map[string][]Interaction
}

// NewInMemoryInteractionLog returns an empty log.
func NewInMemoryInteractionLog() *InMemoryInteractionLog {
	return &InMemoryInteractionLog{logs: make(map[string][]Interaction)}
}

// Insert stores a copy of interaction, assigning an id and timestamp when missing.
func (l *InMemoryInteractionLog) Insert(ctx context.Context, interaction *Interaction) error {
	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now().UTC()
	}
	l.mu.Lock()
	l.logs[interaction.SessionID] = append(l.logs[interaction.SessionID], *interaction)
	l.mu.Unlock()
	return nil
}

// ListBySession returns interactions ordered by interaction order, then arrival.
func (l *InMemoryInteractionLog) ListBySession(ctx context.Context, sessionID string) ([]Interaction, error) {
	l.mu.RLock()
	out := make([]Interaction, len(l.logs[sessionID]))
	copy(out, l.logs[sessionID])
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].InteractionOrder < out[j].InteractionOrder
	})
	return out, nil
}

// Summarize derives the session aggregate from the stored interactions.
func (l *InMemoryInteractionLog) Summarize(ctx context.Context, sessionID string) (*InteractionSummary, error) {
	interactions, err := l.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return summarize(sessionID, interactions), nil
}

func summarize(sessionID string, interactions []Interaction) *InteractionSummary {
	summary := &InteractionSummary{SessionID: sessionID, Interactions: len(interactions)}
	filled := make(map[string]struct{})
	for _, i := range interactions {
		summary.TimeSpentSeconds += i.TimeSpentSeconds
		if countsTowardCompletion(i) {
			filled[i.FieldName] = struct{}{}
		}
	}
	summary.FieldsCompleted = len(filled)
	return summary
}

func sessionTypeOrDefault(t string) string {
	if t == "" {
		return DefaultSessionType
	}
	return t
}
