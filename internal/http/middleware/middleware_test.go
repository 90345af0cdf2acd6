package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/moleary1107/etownz-grants-sub007/internal/identity"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

func TestRateLimitRejectsOverBurst(t *testing.T) {
	handler := RateLimit(1, 2)(okHandler(nil))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Fatal("expected Retry-After header on 429")
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	// A different caller has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected second caller to pass, got %d", rec.Code)
	}
}

func TestRateLimiterKeysByUserAndEvictsIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	if ok, _ := rl.Reserve("user:a"); !ok {
		t.Fatal("expected first request to pass")
	}
	ok, wait := rl.Reserve("user:a")
	if ok || wait <= 0 {
		t.Fatalf("expected second request to be limited with a wait, got ok=%v wait=%s", ok, wait)
	}

	now = now.Add(limiterIdleTTL + time.Second)
	rl.Reserve("user:b")
	if _, exists := rl.limiters["user:a"]; exists {
		t.Fatal("expected idle limiter to be evicted")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(identity.WithUserID(req.Context(), "u1"))
	if got := rateLimitKey(req); got != "user:u1" {
		t.Fatalf("expected user key, got %q", got)
	}
}

func TestRequestLoggerLogsStatusAndEchoesID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-1" {
		t.Fatalf("expected request id echoed, got %q", got)
	}

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", line, err)
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("expected status 418 in log, got %v", entry["status"])
	}
	if entry["request_id"] != "req-1" {
		t.Fatalf("expected request_id in log, got %v", entry["request_id"])
	}
}
