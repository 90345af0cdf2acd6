package recommendations

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/internal/observability/metrics"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

const (
	// MaxContextFields caps each field-name list sent to the generator.
	MaxContextFields = 40
	// MaxSnapshotBytes caps the serialized form data sent to the generator.
	MaxSnapshotBytes = 4 << 10
)

// Orchestrator drafts recommendations through a Generator and records feedback.
type Orchestrator struct {
	repo      Repository
	generator Generator
	metrics   *metrics.FormMetrics
	tracer    trace.Tracer
	logger    *logging.Logger
}

// NewOrchestrator wires the orchestrator. A nil generator disables AI
// suggestions and Recommend always returns an empty list.
func NewOrchestrator(repo Repository, generator Generator, m *metrics.FormMetrics, logger *logging.Logger) *Orchestrator {
	if repo == nil {
		panic("recommendations: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		repo:      repo,
		generator: generator,
		metrics:   m,
		tracer:    otel.Tracer("grants.internal.recommendations"),
		logger:    logger,
	}
}

// Recommend asks the generator for suggestions and persists them. It never
// returns an error: generator, parse and storage failures yield an empty list.
func (o *Orchestrator) Recommend(ctx context.Context, sessionID string, data disclosure.FormData, visibility disclosure.Visibility) (recs []Recommendation) {
	ctx, span := o.tracer.Start(ctx, "recommendations.recommend")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	defer func() {
		if r := recover(); r != nil {
			span.RecordError(fmt.Errorf("panic: %v", r))
			o.logger.Error("recommendation pass panicked", "session_id", sessionID, "panic", r)
			o.metrics.ObserveRecommendations("failed")
			recs = []Recommendation{}
		}
	}()

	if o.generator == nil {
		o.metrics.ObserveRecommendations("disabled")
		return []Recommendation{}
	}

	gc := BuildContext(sessionID, data, visibility)
	result, err := o.generator.Generate(ctx, gc)
	if err != nil {
		span.RecordError(err)
		o.logger.Warn("recommendation generation failed", "session_id", sessionID, "error", err)
		o.metrics.ObserveRecommendations("failed")
		return []Recommendation{}
	}

	out := make([]Recommendation, 0, len(result.Items))
	createdAt := time.Now().UTC()
	for _, item := range result.Items {
		out = append(out, Recommendation{
			ID:          uuid.New().String(),
			SessionID:   sessionID,
			FieldName:   item.FieldName,
			Type:        item.Type,
			Text:        item.Text,
			Confidence:  item.Confidence,
			AIModelUsed: result.Model,
			CreatedAt:   createdAt,
		})
	}
	if len(out) > 0 {
		if err := o.repo.InsertBatch(ctx, out); err != nil {
			span.RecordError(err)
			o.logger.Warn("failed to persist recommendations", "session_id", sessionID, "count", len(out), "error", err)
			o.metrics.ObserveRecommendations("failed")
			return []Recommendation{}
		}
	}

	if len(out) == 0 {
		o.metrics.ObserveRecommendations("empty")
	} else {
		o.metrics.ObserveRecommendations("generated")
	}
	span.SetAttributes(attribute.Int("recommendations", len(out)))
	o.logger.Info("recommendations generated", "session_id", sessionID, "count", len(out), "model", result.Model)
	return out
}

// RecordAction stores user feedback on a recommendation.
func (o *Orchestrator) RecordAction(ctx context.Context, id string, action UserAction) (*Recommendation, error) {
	if !action.Valid() {
		return nil, ErrInvalidAction
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	rec, err := o.repo.SetAction(ctx, id, action)
	if err != nil {
		return nil, err
	}
	o.logger.Info("recommendation feedback recorded", "recommendation_id", id, "session_id", rec.SessionID, "action", action)
	return rec, nil
}

// Pending lists recommendations awaiting feedback, newest first.
func (o *Orchestrator) Pending(ctx context.Context, sessionID string) ([]Recommendation, error) {
	return o.repo.Pending(ctx, sessionID)
}

// Get loads one recommendation.
func (o *Orchestrator) Get(ctx context.Context, id string) (*Recommendation, error) {
	return o.repo.Get(ctx, id)
}

// BuildContext derives the bounded generator input from the session state.
// Pending fields are the visible fields without a filled value.
func BuildContext(sessionID string, data disclosure.FormData, visibility disclosure.Visibility) GenerationContext {
	completed := disclosure.CompletedFields(data)
	filled := make(map[string]struct{}, len(completed))
	for _, f := range completed {
		filled[f] = struct{}{}
	}

	pending := make([]string, 0)
	for _, f := range visibility.VisibleFields() {
		if _, ok := filled[f]; !ok {
			pending = append(pending, f)
		}
	}
	sort.Strings(pending)

	return GenerationContext{
		SessionID:        sessionID,
		CompletedFields:  capFields(completed),
		PendingFields:    capFields(pending),
		FormDataSnapshot: snapshot(data),
	}
}

func capFields(fields []string) []string {
	if len(fields) > MaxContextFields {
		return fields[:MaxContextFields]
	}
	return fields
}

func snapshot(data disclosure.FormData) string {
	if data == nil {
		return "{}"
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	if len(b) <= MaxSnapshotBytes {
		return string(b)
	}
	cut := b[:MaxSnapshotBytes]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "…"
}
