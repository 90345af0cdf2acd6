package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/internal/observability/metrics"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// DefaultCacheTTL bounds how stale a cached rule set can get.
const DefaultCacheTTL = 5 * time.Minute

const globalSchemeKey = "_global"

// CachedStore is a Redis read-through cache in front of another Store.
// Redis failures fall back to the underlying store.
type CachedStore struct {
	next    Store
	redis   *redis.Client
	ttl     time.Duration
	tracer  trace.Tracer
	metrics *metrics.FormMetrics
	logger  *logging.Logger
}

// NewCachedStore wraps next with a Redis cache.
func NewCachedStore(next Store, client *redis.Client, ttl time.Duration, m *metrics.FormMetrics, logger *logging.Logger) *CachedStore {
	if next == nil {
		panic("rules: underlying store cannot be nil")
	}
	if client == nil {
		panic("rules: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedStore{
		next:    next,
		redis:   client,
		ttl:     ttl,
		tracer:  otel.Tracer("grants.internal.rules.cache"),
		metrics: m,
		logger:  logger,
	}
}

// ActiveRules implements Store.
func (s *CachedStore) ActiveRules(ctx context.Context, schemeID string) ([]disclosure.Rule, error) {
	ctx, span := s.tracer.Start(ctx, "rules.active_rules")
	defer span.End()
	span.SetAttributes(attribute.String("grant_scheme_id", schemeID))

	key := cacheKey(schemeID)
	data, err := s.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []disclosure.Rule
		decodeErr := json.Unmarshal(data, &cached)
		if decodeErr == nil {
			s.metrics.ObserveRuleCache("hit")
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return cached, nil
		}
		span.RecordError(decodeErr)
		s.metrics.ObserveRuleCache("error")
		s.logger.Warn("discarding undecodable cached rules", "key", key, "error", decodeErr)
	case errors.Is(err, redis.Nil):
		s.metrics.ObserveRuleCache("miss")
	default:
		span.RecordError(err)
		s.metrics.ObserveRuleCache("error")
		s.logger.Warn("rule cache read failed", "key", key, "error", err)
	}

	rules, err := s.next.ActiveRules(ctx, schemeID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	encoded, err := json.Marshal(rules)
	if err != nil {
		span.RecordError(err)
		return rules, nil
	}
	if err := s.redis.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
		span.RecordError(err)
		s.logger.Warn("rule cache write failed", "key", key, "error", err)
	}
	return rules, nil
}

// Invalidate drops the cached rule set for a scheme. Global rule changes
// should invalidate with InvalidateAll since every scheme embeds them.
func (s *CachedStore) Invalidate(ctx context.Context, schemeID string) error {
	if err := s.redis.Del(ctx, cacheKey(schemeID)).Err(); err != nil {
		return fmt.Errorf("rules: invalidate cache: %w", err)
	}
	return nil
}

// InvalidateAll drops every cached rule set.
func (s *CachedStore) InvalidateAll(ctx context.Context) error {
	iter := s.redis.Scan(ctx, 0, "disclosure_rules:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("rules: invalidate cache: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("rules: scan cache keys: %w", err)
	}
	return nil
}

func cacheKey(schemeID string) string {
	if schemeID == "" {
		schemeID = globalSchemeKey
	}
	return fmt.Sprintf("disclosure_rules:%s", schemeID)
}
