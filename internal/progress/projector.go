package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/internal/observability/metrics"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// SessionProjection reads the interaction log and writes the session
// aggregate. forms.Service satisfies it.
type SessionProjection interface {
	SummarizeInteractions(ctx context.Context, sessionID string) (*forms.InteractionSummary, error)
	ApplySummary(ctx context.Context, summary *forms.InteractionSummary) (*forms.Session, error)
}

// Projector recomputes a session's counters from its interaction log. The
// projection is a full recompute, so replays and duplicates are harmless.
type Projector struct {
	sessions SessionProjection
	metrics  *metrics.FormMetrics
	logger   *logging.Logger
}

func NewProjector(sessions SessionProjection, m *metrics.FormMetrics, logger *logging.Logger) *Projector {
	if sessions == nil {
		panic("progress: session projection cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Projector{sessions: sessions, metrics: m, logger: logger}
}

// Apply projects one event. Events for deleted sessions are dropped without error.
func (p *Projector) Apply(ctx context.Context, evt Event) error {
	summary, err := p.sessions.SummarizeInteractions(ctx, evt.SessionID)
	if err != nil {
		p.metrics.ObserveProgressEvent("failed")
		return fmt.Errorf("progress: summarize %s: %w", evt.SessionID, err)
	}
	summary.SessionID = evt.SessionID

	session, err := p.sessions.ApplySummary(ctx, summary)
	if err != nil {
		if errors.Is(err, forms.ErrSessionNotFound) {
			p.metrics.ObserveProgressEvent("dropped")
			p.logger.Warn("progress event for unknown session", "session_id", evt.SessionID, "event_id", evt.ID)
			return nil
		}
		p.metrics.ObserveProgressEvent("failed")
		return fmt.Errorf("progress: apply summary %s: %w", evt.SessionID, err)
	}

	p.metrics.ObserveProgressEvent("applied")
	p.logger.Debug("session progress projected",
		"session_id", session.ID,
		"time_spent_seconds", session.TimeSpentSeconds,
		"fields_completed", session.FieldsCompleted,
	)
	return nil
}

// HandleBody decodes and applies a raw queue body. Malformed bodies return
// ErrMalformedEvent so callers can discard them instead of retrying.
func (p *Projector) HandleBody(ctx context.Context, body string) error {
	evt, err := DecodeEvent(body)
	if err != nil {
		p.metrics.ObserveProgressEvent("malformed")
		return err
	}
	return p.Apply(ctx, evt)
}
