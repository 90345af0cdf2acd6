package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/moleary1107/etownz-grants-sub007/internal/analysis"
	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/internal/observability/metrics"
	"github.com/moleary1107/etownz-grants-sub007/internal/recommendations"
	"github.com/moleary1107/etownz-grants-sub007/internal/rules"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

const testSecret = "router-secret"

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()

	logger := logging.Default()
	reg := prometheus.NewRegistry()
	m := metrics.NewFormMetrics(reg)

	sessions := forms.NewService(forms.NewInMemoryRepository(), forms.NewInMemoryInteractionLog(), logger, forms.WithMetrics(m))
	orch := recommendations.NewOrchestrator(recommendations.NewInMemoryRepository(), nil, m, logger)
	analyzer := analysis.NewService(rules.NewStaticStore(nil, logger), orch, analysis.NewInMemorySnapshotStore(), logger,
		analysis.WithSessionUpdater(sessions), analysis.WithMetrics(m))

	cfg := &Config{
		Logger:                 logger,
		SessionsHandler:        forms.NewHandler(sessions, logger),
		AnalysisHandler:        analysis.NewHandler(analyzer, sessions, logger),
		RecommendationsHandler: recommendations.NewHandler(orch, sessions, logger),
		AuthSecret:             testSecret,
		MetricsGatherer:        reg,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func do(router http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := do(router, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterHealthReportsFailingDependency(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.HealthChecks = map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}
	})

	rr := do(router, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["postgres"] != "ok" || resp["redis"] != "connection refused" {
		t.Fatalf("unexpected health body: %v", resp)
	}
}

func TestRouterRequiresAuth(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := do(router, http.MethodPost, "/api/v1/sessions", "", `{"fields_total":3}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRouterSessionLifecycle(t *testing.T) {
	router := newTestRouter(t, nil)
	owner := bearer(t, "u1")

	rr := do(router, http.MethodPost, "/api/v1/sessions", owner, `{"fields_total":10}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var session forms.Session
	if err := json.NewDecoder(rr.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.UserID != "u1" || session.FieldsCompleted != 0 {
		t.Fatalf("unexpected session: %+v", session)
	}

	base := "/api/v1/sessions/" + session.ID
	if rr := do(router, http.MethodGet, base, owner, ""); rr.Code != http.StatusOK {
		t.Fatalf("expected owner GET to succeed, got %d", rr.Code)
	}
	if rr := do(router, http.MethodGet, base, bearer(t, "u2"), ""); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for other user, got %d", rr.Code)
	}

	rr = do(router, http.MethodPost, base+"/interactions", owner,
		`{"field_name":"project_title","field_type":"text","interaction_type":"change","field_value":"Grid","time_spent_seconds":4}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected interaction to be tracked, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(router, http.MethodPost, base+"/analyze", owner, `{"form_data":{"organization_name":"Acme"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected analysis, got %d: %s", rr.Code, rr.Body.String())
	}
	var result analysis.FormAnalysis
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if result.CompletionEstimate != 20 {
		t.Fatalf("expected 20%% completion, got %d", result.CompletionEstimate)
	}

	if rr := do(router, http.MethodGet, base+"/recommendations", owner, ""); rr.Code != http.StatusOK {
		t.Fatalf("expected pending recommendations, got %d", rr.Code)
	}
	if rr := do(router, http.MethodPatch, base, owner, `{"status":"completed"}`); rr.Code != http.StatusOK {
		t.Fatalf("expected completion patch to succeed, got %d", rr.Code)
	}

	rr = do(router, http.MethodGet, "/api/v1/stats", owner, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected stats, got %d", rr.Code)
	}
	var snap metrics.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if snap.Analyses != 1 || snap.Interactions["change"] != 1 {
		t.Fatalf("unexpected stats: %+v", snap)
	}
}

func TestRouterDevUserHeader(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.AuthSecret = ""
		cfg.AllowDevUserHeader = true
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader([]byte(`{}`)))
	req.Header.Set(devUserHeader, "dev-user")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected dev header to authenticate, got %d", rr.Code)
	}

	if rr := do(router, http.MethodPost, "/api/v1/sessions", "", `{}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without dev header, got %d", rr.Code)
	}
}

func TestRouterRateLimit(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.RateLimitRPS = 1
		cfg.RateLimitBurst = 1
	})
	auth := bearer(t, "u1")

	if rr := do(router, http.MethodGet, "/api/v1/stats", auth, ""); rr.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}
	if rr := do(router, http.MethodGet, "/api/v1/stats", auth, ""); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be limited, got %d", rr.Code)
	}
}
