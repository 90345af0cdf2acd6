package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/internal/progress"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

type scriptedHandler map[string]error

func (h scriptedHandler) HandleBody(_ context.Context, body string) error {
	return h[body]
}

func TestHandleReportsOnlyRetryableFailures(t *testing.T) {
	handler := scriptedHandler{
		"ok":        nil,
		"malformed": fmt.Errorf("decode: %w", progress.ErrMalformedEvent),
		"db-down":   errors.New("connection refused"),
	}
	evt := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: "ok"},
		{MessageId: "m2", Body: "malformed"},
		{MessageId: "m3", Body: "db-down"},
	}}

	resp := handle(context.Background(), handler, logging.New("error"), evt)

	if len(resp.BatchItemFailures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(resp.BatchItemFailures))
	}
	if resp.BatchItemFailures[0].ItemIdentifier != "m3" {
		t.Fatalf("expected m3 to be retried, got %q", resp.BatchItemFailures[0].ItemIdentifier)
	}
}

func TestHandleEmptyBatch(t *testing.T) {
	resp := handle(context.Background(), scriptedHandler{}, logging.New("error"), events.SQSEvent{})
	if resp.BatchItemFailures == nil || len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected empty, non-nil failure list")
	}
}

func TestHandleProjectsInteractions(t *testing.T) {
	logger := logging.New("error")
	ctx := context.Background()
	sessions := forms.NewService(forms.NewInMemoryRepository(), forms.NewInMemoryInteractionLog(), logger)

	session, err := sessions.CreateSession(ctx, &forms.CreateSessionRequest{UserID: "user-1", FieldsTotal: 4})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := sessions.TrackInteraction(ctx, &forms.TrackInteractionRequest{
		SessionID:        session.ID,
		FieldName:        "organization_name",
		FieldType:        "text",
		InteractionType:  forms.InteractionChange,
		FieldValue:       "Acme",
		TimeSpentSeconds: 9,
	}); err != nil {
		t.Fatalf("track interaction: %v", err)
	}

	body := fmt.Sprintf(`{"id":"evt-1","session_id":%q,"interaction_type":"change","field_name":"organization_name","occurred_at":%q}`,
		session.ID, time.Now().UTC().Format(time.RFC3339))
	evt := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "m1", Body: body}}}

	resp := handle(ctx, progress.NewProjector(sessions, nil, logger), logger, evt)
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("unexpected failures: %+v", resp.BatchItemFailures)
	}

	got, err := sessions.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.TimeSpentSeconds != 9 || got.FieldsCompleted != 1 {
		t.Fatalf("expected projected aggregate (9s, 1 field), got (%ds, %d fields)", got.TimeSpentSeconds, got.FieldsCompleted)
	}
}
