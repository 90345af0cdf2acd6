package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/internal/observability/metrics"
	"github.com/moleary1107/etownz-grants-sub007/internal/recommendations"
	"github.com/moleary1107/etownz-grants-sub007/internal/rules"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

type failingRuleStore struct{}

func (failingRuleStore) ActiveRules(context.Context, string) ([]disclosure.Rule, error) {
	return nil, errors.New("db down")
}

type stubGenerator struct {
	result recommendations.GenerationResult
	err    error
}

func (g *stubGenerator) Generate(ctx context.Context, gc recommendations.GenerationContext) (recommendations.GenerationResult, error) {
	return g.result, g.err
}

type deadlineRecommender struct {
	hadDeadline bool
}

func (r *deadlineRecommender) Recommend(ctx context.Context, sessionID string, data disclosure.FormData, visibility disclosure.Visibility) []recommendations.Recommendation {
	_, r.hadDeadline = ctx.Deadline()
	return nil
}

type failingSnapshots struct{ InMemorySnapshotStore }

func (*failingSnapshots) ReplaceSnapshot(context.Context, string, disclosure.Visibility) error {
	return errors.New("disk full")
}

type recordingUpdater struct {
	sessionID  string
	percentage int
	err        error
}

func (u *recordingUpdater) UpdateCompletion(ctx context.Context, sessionID string, percentage int) error {
	u.sessionID = sessionID
	u.percentage = percentage
	return u.err
}

func researchRule() disclosure.Rule {
	return disclosure.Rule{
		ID:               "r1",
		RuleName:         "research methodology",
		TriggerField:     "project_type",
		TriggerCondition: disclosure.Condition{Operator: disclosure.OpEquals, Value: "research"},
		TargetFields:     []string{"methodology"},
		Action:           disclosure.ActionShow,
		Priority:         10,
		IsActive:         true,
	}
}

func orchestratorWith(gen recommendations.Generator) *recommendations.Orchestrator {
	return recommendations.NewOrchestrator(recommendations.NewInMemoryRepository(), gen, nil, logging.Default())
}

func testSession() *forms.Session {
	return &forms.Session{ID: "sess-1", UserID: "u1"}
}

func TestAnalyze_GeneratorFailureStillReturnsAnalysis(t *testing.T) {
	svc := NewService(
		rules.NewStaticStore(nil, logging.Default()),
		orchestratorWith(&stubGenerator{err: errors.New("model unavailable")}),
		NewInMemorySnapshotStore(),
		logging.Default(),
	)

	data := disclosure.FormData{
		"organization_name": "Acme",
		"project_title":     "Grid",
	}
	result, err := svc.Analyze(context.Background(), testSession(), data, "")
	require.NoError(t, err)

	assert.NotNil(t, result.Recommendations)
	assert.Empty(t, result.Recommendations)
	assert.Equal(t, 40, result.CompletionEstimate)
	assert.Empty(t, result.NextSuggestedField)
	assert.Len(t, result.RecommendedFields, len(DefaultFields))
	assert.Empty(t, result.OptionalFields)
}

func TestAnalyze_AppliesRulesAndSuggestsNextField(t *testing.T) {
	gen := &stubGenerator{result: recommendations.GenerationResult{
		Model: "test-model",
		Items: []recommendations.GeneratedItem{
			{FieldName: "methodology", Type: recommendations.TypeShowNext, Text: "Describe your methods", Confidence: 0.8},
		},
	}}
	snapshots := NewInMemorySnapshotStore()
	svc := NewService(
		rules.NewStaticStore([]disclosure.Rule{researchRule()}, logging.Default()),
		orchestratorWith(gen),
		snapshots,
		logging.Default(),
		WithDefaultFields([]string{"project_title", "project_type"}),
	)

	data := disclosure.FormData{"project_type": "research", "project_title": "Soil"}
	result, err := svc.Analyze(context.Background(), testSession(), data, "")
	require.NoError(t, err)

	methodology := result.FieldVisibility["methodology"]
	assert.True(t, methodology.IsVisible)
	assert.False(t, methodology.IsRequired)
	assert.Equal(t, disclosure.ReasonRuleTriggered, methodology.VisibilityReason)
	assert.Equal(t, "r1", methodology.RuleID)

	assert.Equal(t, []string{"project_title", "project_type"}, result.RecommendedFields)
	assert.Equal(t, []string{"methodology"}, result.OptionalFields)
	assert.Equal(t, 100, result.CompletionEstimate)
	assert.Equal(t, "methodology", result.NextSuggestedField)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "test-model", result.Recommendations[0].AIModelUsed)

	stored, err := snapshots.GetSnapshot(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, result.FieldVisibility, stored)
}

func TestAnalyze_RuleStoreFailureFallsBackToDefaults(t *testing.T) {
	svc := NewService(failingRuleStore{}, orchestratorWith(nil), NewInMemorySnapshotStore(), logging.Default(),
		WithDefaultFields([]string{"a", "b"}))

	result, err := svc.Analyze(context.Background(), testSession(), disclosure.FormData{"a": "x"}, "scheme-1")
	require.NoError(t, err)

	assert.Len(t, result.FieldVisibility, 2)
	for _, name := range []string{"a", "b"} {
		state := result.FieldVisibility[name]
		assert.True(t, state.IsVisible)
		assert.True(t, state.IsRequired)
		assert.Equal(t, disclosure.ReasonDefault, state.VisibilityReason)
	}
	assert.Equal(t, 50, result.CompletionEstimate)
}

func TestAnalyze_HighestPriorityRuleEvaluatedFirst(t *testing.T) {
	hide := researchRule()
	hide.ID = "hide"
	hide.Action = disclosure.ActionHide
	hide.Priority = 1

	req := researchRule()
	req.ID = "require"
	req.Action = disclosure.ActionRequire
	req.Priority = 50

	// Rules are evaluated in descending priority; the last match wins.
	svc := NewService(rules.NewStaticStore([]disclosure.Rule{req, hide}, logging.Default()),
		orchestratorWith(nil), NewInMemorySnapshotStore(), logging.Default(), WithDefaultFields([]string{"x"}))

	result, err := svc.Analyze(context.Background(), testSession(), disclosure.FormData{"project_type": "research"}, "")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if got := result.FieldVisibility["methodology"].RuleID; got != "hide" {
		t.Fatalf("expected the lower priority rule to win, got %q", got)
	}
}

func TestAnalyze_RecommendationRunsUnderTimeout(t *testing.T) {
	rec := &deadlineRecommender{}
	svc := NewService(rules.NewStaticStore(nil, logging.Default()), rec, NewInMemorySnapshotStore(), logging.Default(),
		WithRecommendationTimeout(time.Second))

	result, err := svc.Analyze(context.Background(), testSession(), disclosure.FormData{}, "")
	require.NoError(t, err)
	assert.True(t, rec.hadDeadline)
	assert.NotNil(t, result.Recommendations)
}

func TestAnalyze_UpdatesSessionCompletion(t *testing.T) {
	updater := &recordingUpdater{}
	svc := NewService(rules.NewStaticStore(nil, logging.Default()), orchestratorWith(nil), NewInMemorySnapshotStore(), logging.Default(),
		WithDefaultFields([]string{"a", "b", "c", "d"}), WithSessionUpdater(updater))

	_, err := svc.Analyze(context.Background(), testSession(), disclosure.FormData{"a": 1, "b": "y", "c": 0}, "")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", updater.sessionID)
	assert.Equal(t, 50, updater.percentage)

	updater.err = errors.New("conflict")
	_, err = svc.Analyze(context.Background(), testSession(), disclosure.FormData{}, "")
	assert.Error(t, err)
}

func TestAnalyze_SnapshotFailureIsReturned(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := NewService(rules.NewStaticStore(nil, logging.Default()), orchestratorWith(nil), &failingSnapshots{}, logging.Default(),
		WithMetrics(metrics.NewFormMetrics(reg)))

	_, err := svc.Analyze(context.Background(), testSession(), disclosure.FormData{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replace snapshot")

	snap := metrics.TakeSnapshot(reg)
	assert.Equal(t, uint64(1), snap.Analyses)
}

func TestAnalyze_Validation(t *testing.T) {
	svc := NewService(rules.NewStaticStore(nil, logging.Default()), orchestratorWith(nil), NewInMemorySnapshotStore(), logging.Default())

	_, err := svc.Analyze(context.Background(), nil, disclosure.FormData{}, "")
	assert.ErrorIs(t, err, ErrMissingSessionID)

	_, err = svc.Analyze(context.Background(), testSession(), nil, "")
	assert.ErrorIs(t, err, ErrMissingFormData)
}
