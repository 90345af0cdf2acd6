package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/internal/observability/metrics"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

type failingProjection struct{}

func (failingProjection) SummarizeInteractions(context.Context, string) (*forms.InteractionSummary, error) {
	return nil, errors.New("log unavailable")
}

func (failingProjection) ApplySummary(context.Context, *forms.InteractionSummary) (*forms.Session, error) {
	return nil, errors.New("unreachable")
}

func TestProjector_EndToEndThroughMemoryQueue(t *testing.T) {
	queue := NewMemoryQueue(16)
	svc := forms.NewService(forms.NewInMemoryRepository(), forms.NewInMemoryInteractionLog(), logging.Default(),
		forms.WithPublisher(NewPublisher(queue, logging.Default())))
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, &forms.CreateSessionRequest{UserID: "u1", FieldsTotal: 4})
	require.NoError(t, err)

	requests := []forms.TrackInteractionRequest{
		{SessionID: session.ID, FieldName: "project_title", FieldType: "text", InteractionType: forms.InteractionFocus, TimeSpentSeconds: 3},
		{SessionID: session.ID, FieldName: "project_title", FieldType: "text", InteractionType: forms.InteractionChange, FieldValue: "Grid", TimeSpentSeconds: 7},
		{SessionID: session.ID, FieldName: "requested_amount", FieldType: "number", InteractionType: forms.InteractionBlur, FieldValue: 1000, TimeSpentSeconds: 5},
		{SessionID: session.ID, FieldName: "summary", FieldType: "textarea", InteractionType: forms.InteractionChange, FieldValue: "", TimeSpentSeconds: 2},
	}
	for i := range requests {
		_, err := svc.TrackInteraction(ctx, &requests[i])
		require.NoError(t, err)
	}
	require.Equal(t, len(requests), queue.Len())

	reg := prometheus.NewRegistry()
	projector := NewProjector(svc, metrics.NewFormMetrics(reg), logging.Default())
	worker := NewWorker(projector, queue, logging.Default(), WithWorkerCount(2), WithReceiveWaitSeconds(0))

	runCtx, cancel := context.WithCancel(ctx)
	worker.Start(runCtx)

	waitFor(func() bool { return queue.Len() == 0 }, time.Second, t)
	waitFor(func() bool {
		got, err := svc.GetSession(ctx, session.ID)
		return err == nil && got.TimeSpentSeconds == 17
	}, time.Second, t)

	cancel()
	worker.Wait()

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 17, got.TimeSpentSeconds)
	assert.Equal(t, 2, got.FieldsCompleted)
	assert.Equal(t, 4, got.FieldsTotal)
}

func TestProjector_DropsUnknownSession(t *testing.T) {
	svc := forms.NewService(forms.NewInMemoryRepository(), forms.NewInMemoryInteractionLog(), logging.Default())
	reg := prometheus.NewRegistry()
	projector := NewProjector(svc, metrics.NewFormMetrics(reg), logging.Default())

	err := projector.Apply(context.Background(), Event{ID: "e1", SessionID: "missing"})
	assert.NoError(t, err)
}

func TestProjector_PropagatesLogFailure(t *testing.T) {
	projector := NewProjector(failingProjection{}, nil, logging.Default())

	err := projector.HandleBody(context.Background(), `{"session_id":"s1"}`)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformedEvent))

	err = projector.HandleBody(context.Background(), `not json`)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func waitFor(cond func() bool, timeout time.Duration, t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
