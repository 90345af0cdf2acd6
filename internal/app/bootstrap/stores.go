package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/moleary1107/etownz-grants-sub007/internal/analysis"
	appconfig "github.com/moleary1107/etownz-grants-sub007/internal/config"
	"github.com/moleary1107/etownz-grants-sub007/internal/observability/metrics"
	"github.com/moleary1107/etownz-grants-sub007/internal/rules"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// Snapshot backends accepted by SNAPSHOT_BACKEND.
const (
	SnapshotBackendPostgres = "postgres"
	SnapshotBackendDynamoDB = "dynamodb"
	SnapshotBackendMemory   = "memory"
)

// BuildRuleStore picks the rule source (Postgres when a pool is available,
// otherwise RULES_FILE) and puts the Redis cache in front when Redis is up.
func BuildRuleStore(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, m *metrics.FormMetrics, logger *logging.Logger) (rules.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var base rules.Store
	switch {
	case pool != nil:
		base = rules.NewPostgresStore(pool, logger)
		logger.Info("disclosure rules from postgres")
	case strings.TrimSpace(cfg.RulesFile) != "":
		static, err := rules.LoadFile(cfg.RulesFile, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load rules file: %w", err)
		}
		base = static
		logger.Info("disclosure rules from file", "path", cfg.RulesFile, "count", len(static.Rules()))
	default:
		logger.Warn("no rule source configured; only default fields will be shown")
		base = rules.NewStaticStore(nil, logger)
	}

	if redisClient == nil {
		return base, nil
	}
	return rules.NewCachedStore(base, redisClient, cfg.RuleCacheTTL, m, logger), nil
}

// BuildSnapshotStore returns the visibility snapshot store named by
// SNAPSHOT_BACKEND. The postgres backend degrades to memory without a pool.
func BuildSnapshotStore(cfg *appconfig.Config, pool *pgxpool.Pool, awsCfg aws.Config, logger *logging.Logger) (analysis.SnapshotStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.SnapshotBackend)) {
	case "", SnapshotBackendPostgres:
		if pool == nil {
			logger.Warn("snapshot backend postgres requested without DATABASE_URL; using memory")
			return analysis.NewInMemorySnapshotStore(), nil
		}
		return analysis.NewPostgresSnapshotStore(pool), nil
	case SnapshotBackendDynamoDB:
		if strings.TrimSpace(cfg.SnapshotTable) == "" {
			return nil, fmt.Errorf("bootstrap: SNAPSHOT_TABLE is required for dynamodb snapshots")
		}
		return analysis.NewDynamoSnapshotStore(dynamodb.NewFromConfig(awsCfg), cfg.SnapshotTable, logger), nil
	case SnapshotBackendMemory:
		return analysis.NewInMemorySnapshotStore(), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown snapshot backend %q", cfg.SnapshotBackend)
	}
}
