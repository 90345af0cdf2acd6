package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/moleary1107/etownz-grants-sub007/internal/config"
	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/internal/progress"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

func TestSetupMetricsExposesFormMetrics(t *testing.T) {
	registry, formMetrics := setupMetrics()
	if registry == nil || formMetrics == nil {
		t.Fatalf("expected non-nil registry and metrics")
	}

	formMetrics.ObserveInteraction("change")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, family := range families {
		if strings.HasSuffix(family.GetName(), "field_interactions_total") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected interaction counter to be registered")
	}
}

func TestSetupStoresWithoutDatabaseUseMemory(t *testing.T) {
	sessions, interactions := setupFormStores(nil)
	if _, ok := sessions.(*forms.InMemoryRepository); !ok {
		t.Fatalf("expected memory session repository, got %T", sessions)
	}
	if _, ok := interactions.(*forms.InMemoryInteractionLog); !ok {
		t.Fatalf("expected memory interaction log, got %T", interactions)
	}
	if repo := setupRecommendationRepository(nil); repo == nil {
		t.Fatalf("expected recommendation repository")
	}
	if checks := setupHealthChecks(nil, nil); len(checks) != 0 {
		t.Fatalf("expected no health checks without dependencies, got %d", len(checks))
	}
}

func TestSetupInlineWorkerSkipsNonMemoryQueue(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{WorkerCount: 1}

	if worker := setupInlineWorker(context.Background(), cfg, logger, nil, nil); worker != nil {
		t.Fatalf("expected no worker without a memory queue")
	}
}

func TestSetupInlineWorkerStartsAndStops(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{WorkerCount: 1}
	sessions := forms.NewService(forms.NewInMemoryRepository(), forms.NewInMemoryInteractionLog(), logger)
	projector := progress.NewProjector(sessions, nil, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := setupInlineWorker(ctx, cfg, logger, projector, progress.NewMemoryQueue(2))
	if worker == nil {
		t.Fatalf("expected worker for memory queue")
	}

	cancel()
	waitForInlineWorker(worker, logger)
}

func TestBuildAppInMemoryServesLifecycle(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	logger := logging.New("error")
	cfg := &appconfig.Config{
		Env:             "development",
		SnapshotBackend: "memory",
		UseMemoryQueue:  true,
		WorkerCount:     1,
		RateLimitRPS:    100,
		RateLimitBurst:  100,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, cfg, aws.Config{Region: "us-east-1"}, logger)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	defer app.close()
	defer waitForInlineWorker(app.worker, logger)
	defer cancel()

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rec.Code)
	}

	body, _ := json.Marshal(map[string]any{"fields_total": 5})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader(body))
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var session forms.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	body, _ = json.Marshal(map[string]any{"form_data": map[string]any{"organization_name": "Acme"}})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+session.ID+"/analyze", bytes.NewReader(body))
	req.Header.Set("X-User-Id", "user-1")
	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected analyze 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var analysis struct {
		CompletionEstimate int `json:"completion_estimate"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if analysis.CompletionEstimate != 20 {
		t.Fatalf("expected completion 20, got %d", analysis.CompletionEstimate)
	}
}
