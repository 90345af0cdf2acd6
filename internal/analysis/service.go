package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/internal/observability/metrics"
	"github.com/moleary1107/etownz-grants-sub007/internal/recommendations"
	"github.com/moleary1107/etownz-grants-sub007/internal/rules"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// DefaultRecommendationTimeout bounds the AI call inside Analyze.
const DefaultRecommendationTimeout = 20 * time.Second

// Recommender drafts AI suggestions. recommendations.Orchestrator satisfies it.
type Recommender interface {
	Recommend(ctx context.Context, sessionID string, data disclosure.FormData, visibility disclosure.Visibility) []recommendations.Recommendation
}

// SessionUpdater receives the computed completion percentage.
type SessionUpdater interface {
	UpdateCompletion(ctx context.Context, sessionID string, percentage int) error
}

// Service composes the rule engine, recommender and completion estimator
// into a single analysis call.
type Service struct {
	rules       rules.Store
	recommender Recommender
	snapshots   SnapshotStore
	sessions    SessionUpdater
	metrics     *metrics.FormMetrics
	logger      *logging.Logger

	defaultFields []string
	timeout       time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultFields replaces DefaultFields.
func WithDefaultFields(fields []string) Option {
	return func(s *Service) {
		if len(fields) > 0 {
			s.defaultFields = append([]string(nil), fields...)
		}
	}
}

// WithRecommendationTimeout overrides DefaultRecommendationTimeout.
func WithRecommendationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSessionUpdater writes each completion estimate back to the session.
func WithSessionUpdater(u SessionUpdater) Option {
	return func(s *Service) {
		s.sessions = u
	}
}

// WithMetrics records analysis latency and outcomes. A nil m disables it.
func WithMetrics(m *metrics.FormMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService wires the analysis facade.
func NewService(store rules.Store, recommender Recommender, snapshots SnapshotStore, logger *logging.Logger, opts ...Option) *Service {
	if store == nil {
		panic("analysis: rule store cannot be nil")
	}
	if recommender == nil {
		panic("analysis: recommender cannot be nil")
	}
	if snapshots == nil {
		panic("analysis: snapshot store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		rules:         store,
		recommender:   recommender,
		snapshots:     snapshots,
		logger:        logger,
		defaultFields: append([]string(nil), DefaultFields...),
		timeout:       DefaultRecommendationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze computes visibility, recommendations and completion for the
// submitted form data. Rule lookup and recommendation failures degrade the
// result; snapshot and session write failures are returned.
func (s *Service) Analyze(ctx context.Context, session *forms.Session, data disclosure.FormData, schemeID string) (*FormAnalysis, error) {
	if session == nil || session.ID == "" {
		return nil, ErrMissingSessionID
	}
	if data == nil {
		return nil, ErrMissingFormData
	}
	start := time.Now()
	status := "ok"
	defer func() {
		s.metrics.ObserveAnalysis(status, time.Since(start).Seconds())
	}()

	active, err := s.rules.ActiveRules(ctx, schemeID)
	if err != nil {
		s.logger.Warn("rule lookup failed, continuing with defaults",
			"session_id", session.ID,
			"grant_scheme_id", schemeID,
			"error", err,
		)
		active = nil
	}
	visibility := disclosure.ComputeVisibility(data, disclosure.SortByPriority(active), s.defaultFields, schemeID)

	recCtx, cancel := context.WithTimeout(ctx, s.timeout)
	recs := s.recommender.Recommend(recCtx, session.ID, data, visibility)
	cancel()
	if recs == nil {
		recs = []recommendations.Recommendation{}
	}

	estimate := disclosure.EstimateCompletion(data, visibility)
	required, optional := visibility.Partition()

	result := &FormAnalysis{
		RecommendedFields:  required,
		OptionalFields:     optional,
		FieldVisibility:    visibility,
		CompletionEstimate: estimate,
		Recommendations:    recs,
	}
	if len(recs) > 0 {
		result.NextSuggestedField = recs[0].FieldName
	}

	if err := s.snapshots.ReplaceSnapshot(ctx, session.ID, visibility); err != nil {
		status = "error"
		return nil, fmt.Errorf("analysis: replace snapshot: %w", err)
	}
	if s.sessions != nil {
		if err := s.sessions.UpdateCompletion(ctx, session.ID, estimate); err != nil {
			status = "error"
			return nil, fmt.Errorf("analysis: update completion: %w", err)
		}
	}

	s.logger.Info("form analyzed",
		"session_id", session.ID,
		"grant_scheme_id", schemeID,
		"rules", len(active),
		"visible_fields", len(required)+len(optional),
		"completion_estimate", estimate,
		"recommendations", len(recs),
	)
	return result, nil
}

// Snapshot returns the last visibility stored for a session.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (disclosure.Visibility, error) {
	return s.snapshots.GetSnapshot(ctx, sessionID)
}
