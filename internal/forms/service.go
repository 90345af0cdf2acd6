package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moleary1107/etownz-grants-sub007/internal/observability/metrics"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// InteractionPublisher forwards recorded interactions to the progress projector.
type InteractionPublisher interface {
	PublishInteraction(ctx context.Context, interaction Interaction) error
}

// Service owns the session lifecycle and the interaction log.
type Service struct {
	sessions     SessionRepository
	interactions InteractionLog
	publisher    InteractionPublisher
	metrics      *metrics.FormMetrics
	logger       *logging.Logger
	now          func() time.Time
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithPublisher wires the progress publisher. Without one, interactions are only logged.
func WithPublisher(p InteractionPublisher) ServiceOption {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithMetrics records session transitions and interactions. A nil m disables it.
func WithMetrics(m *metrics.FormMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds the service.
func NewService(sessions SessionRepository, interactions InteractionLog, logger *logging.Logger, opts ...ServiceOption) *Service {
	if sessions == nil {
		panic("forms: session repository required")
	}
	if interactions == nil {
		panic("forms: interaction log required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		sessions:     sessions,
		interactions: interactions,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateSession starts a new active session.
func (s *Service) CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	if req == nil {
		return nil, ErrMissingUserID
	}
	session, err := s.sessions.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("form session started", "session_id", session.ID, "user_id", session.UserID, "grant_id", session.GrantID)
	return session, nil
}

// GetSession loads a session by id.
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingSessionID
	}
	return s.sessions.GetByID(ctx, id)
}

// maxTransitionAttempts bounds the re-read loop of a status change. A session
// changes status at most once, so a second attempt always settles it.
const maxTransitionAttempts = 3

// PatchSession applies a partial update. A status change goes through Transition
// and is written only if the status read is still current; setting the current
// status again is a no-op.
func (s *Service) PatchSession(ctx context.Context, id string, patch SessionPatch) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingSessionID
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	patch.CompletedAt = nil
	patch.AbandonedAt = nil
	patch.ExpectedStatus = nil

	if patch.Status == nil {
		if patch.Empty() {
			return s.sessions.GetByID(ctx, id)
		}
		return s.sessions.Patch(ctx, id, &patch)
	}

	target := *patch.Status
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		current, err := s.sessions.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		resolved, err := Transition(current.Status, target, s.now())
		if err != nil {
			return nil, err
		}

		attemptPatch := patch
		attemptPatch.Status = resolved.Status
		attemptPatch.CompletedAt = resolved.CompletedAt
		attemptPatch.AbandonedAt = resolved.AbandonedAt
		if attemptPatch.Empty() {
			return current, nil
		}
		if resolved.Status != nil {
			attemptPatch.ExpectedStatus = &current.Status
		}

		session, err := s.sessions.Patch(ctx, id, &attemptPatch)
		if errors.Is(err, errStatusConflict) {
			s.logger.Debug("session status changed during update, re-reading", "session_id", id, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		if resolved.Status != nil {
			s.metrics.ObserveTransition(string(target))
			s.logger.Info("form session status changed", "session_id", id, "status", target)
		}
		return session, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, errStatusConflict)
}

// CompleteSession marks the session completed.
func (s *Service) CompleteSession(ctx context.Context, id string) (*Session, error) {
	status := StatusCompleted
	return s.PatchSession(ctx, id, SessionPatch{Status: &status})
}

// AbandonSession marks the session abandoned.
func (s *Service) AbandonSession(ctx context.Context, id string) (*Session, error) {
	status := StatusAbandoned
	return s.PatchSession(ctx, id, SessionPatch{Status: &status})
}

// UpdateCompletion stores a freshly estimated completion percentage.
func (s *Service) UpdateCompletion(ctx context.Context, id string, percentage int) error {
	_, err := s.PatchSession(ctx, id, SessionPatch{CompletionPercentage: &percentage})
	return err
}

// ApplySummary writes the projected aggregate counters onto the session.
func (s *Service) ApplySummary(ctx context.Context, summary *InteractionSummary) (*Session, error) {
	if summary == nil {
		return nil, ErrMissingSessionID
	}
	return s.PatchSession(ctx, summary.SessionID, SessionPatch{
		TimeSpentSeconds: &summary.TimeSpentSeconds,
		FieldsCompleted:  &summary.FieldsCompleted,
	})
}

// TrackInteraction appends an interaction to the log and hands it to the
// progress publisher. Publish failures are logged and not returned.
func (s *Service) TrackInteraction(ctx context.Context, req *TrackInteractionRequest) (*Interaction, error) {
	if req == nil {
		return nil, ErrMissingInteractionField
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.sessions.GetByID(ctx, req.SessionID); err != nil {
		return nil, err
	}

	validationErrors := req.ValidationErrors
	if validationErrors == nil {
		validationErrors = []string{}
	}
	interaction := &Interaction{
		SessionID:          req.SessionID,
		FieldName:          req.FieldName,
		FieldType:          req.FieldType,
		InteractionType:    req.InteractionType,
		FieldValue:         req.fieldValue(),
		TimeSpentSeconds:   req.TimeSpentSeconds,
		ValidationErrors:   validationErrors,
		AISuggestionsShown: req.AISuggestionsShown,
		AIAssistanceUsed:   req.AIAssistanceUsed,
		InteractionOrder:   req.InteractionOrder,
		Metadata:           req.Metadata,
	}
	if err := s.interactions.Insert(ctx, interaction); err != nil {
		return nil, fmt.Errorf("forms: track interaction: %w", err)
	}
	s.metrics.ObserveInteraction(string(interaction.InteractionType))

	if s.publisher != nil {
		if err := s.publisher.PublishInteraction(ctx, *interaction); err != nil {
			s.logger.Warn("failed to publish interaction", "session_id", interaction.SessionID, "interaction_id", interaction.ID, "error", err)
		}
	}
	return interaction, nil
}

// ListInteractions returns the session's interactions in recorded order.
func (s *Service) ListInteractions(ctx context.Context, sessionID string) ([]Interaction, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSessionID
	}
	return s.interactions.ListBySession(ctx, sessionID)
}

// SummarizeInteractions derives the aggregate counters from the log.
func (s *Service) SummarizeInteractions(ctx context.Context, sessionID string) (*InteractionSummary, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSessionID
	}
	return s.interactions.Summarize(ctx, sessionID)
}
