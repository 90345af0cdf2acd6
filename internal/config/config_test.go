package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "RULE_CACHE_TTL", "DEFAULT_FIELDS", "RATE_LIMIT_RPS", "SNAPSHOT_BACKEND", "RECOMMENDATION_TIMEOUT"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.RuleCacheTTL != 5*time.Minute {
		t.Fatalf("expected default rule cache ttl, got %s", cfg.RuleCacheTTL)
	}
	if cfg.DefaultFields != nil {
		t.Fatalf("expected no default fields override, got %v", cfg.DefaultFields)
	}
	if cfg.RateLimitRPS != 10 || cfg.RateLimitBurst != 20 {
		t.Fatalf("expected default rate limit 10/20, got %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.SnapshotBackend != "postgres" {
		t.Fatalf("expected postgres snapshot backend, got %s", cfg.SnapshotBackend)
	}
	if cfg.RecommendationTimeout != 20*time.Second {
		t.Fatalf("expected default recommendation timeout, got %s", cfg.RecommendationTimeout)
	}
	if cfg.IsProduction() {
		t.Fatalf("expected development config")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("DEFAULT_FIELDS", "organization_name, project_title,, budget ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://grants.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RULE_CACHE_TTL", "90s")
	t.Setenv("SNAPSHOT_BACKEND", " DynamoDB ")
	t.Setenv("RECOMMENDATION_MAX_TOKENS", "1200")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	cfg := Load()

	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production config")
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	want := []string{"organization_name", "project_title", "budget"}
	if len(cfg.DefaultFields) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.DefaultFields)
	}
	for i := range want {
		if cfg.DefaultFields[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cfg.DefaultFields)
		}
	}
	if len(cfg.CORSAllowedOrigins) != 1 {
		t.Fatalf("expected one CORS origin, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.RateLimitRPS)
	}
	if cfg.RuleCacheTTL != 90*time.Second {
		t.Fatalf("expected ttl override, got %s", cfg.RuleCacheTTL)
	}
	if cfg.SnapshotBackend != "dynamodb" {
		t.Fatalf("expected normalized snapshot backend, got %q", cfg.SnapshotBackend)
	}
	if cfg.RecommendationMaxTokens != 1200 {
		t.Fatalf("expected max tokens override, got %d", cfg.RecommendationMaxTokens)
	}
	if !cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue enabled")
	}
}

func TestLoadDotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("GEMINI_MODEL_ID=from-file\nBEDROCK_MODEL_ID=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("BEDROCK_MODEL_ID", "from-env")
	t.Setenv("GEMINI_MODEL_ID", "")
	os.Unsetenv("GEMINI_MODEL_ID")

	loadDotEnv(path)

	if got := os.Getenv("BEDROCK_MODEL_ID"); got != "from-env" {
		t.Fatalf("expected process env to win, got %q", got)
	}
	if got := os.Getenv("GEMINI_MODEL_ID"); got != "from-file" {
		t.Fatalf("expected .env value, got %q", got)
	}
	loadDotEnv(filepath.Join(dir, "missing.env"))
}
