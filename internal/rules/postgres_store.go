package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

type queryExecer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore reads rules from the disclosure_rules table.
type PostgresStore struct {
	pool   queryExecer
	logger *logging.Logger
}

// NewPostgresStore builds a store on a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *logging.Logger) *PostgresStore {
	if pool == nil {
		panic("rules: pgx pool required")
	}
	return newPostgresStoreWithExec(pool, logger)
}

func newPostgresStoreWithExec(exec queryExecer, logger *logging.Logger) *PostgresStore {
	if exec == nil {
		panic("rules: exec required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresStore{pool: exec, logger: logger}
}

// ActiveRules implements Store.
func (s *PostgresStore) ActiveRules(ctx context.Context, schemeID string) ([]disclosure.Rule, error) {
	var scheme *string
	if schemeID != "" {
		scheme = &schemeID
	}
	query := `
		SELECT id, grant_scheme_id, rule_name, trigger_field, trigger_condition,
		       target_fields, action, priority, is_active
		FROM disclosure_rules
		WHERE is_active = TRUE AND (grant_scheme_id IS NULL OR grant_scheme_id = $1)
		ORDER BY priority DESC, created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, scheme)
	if err != nil {
		return nil, fmt.Errorf("rules: query active rules: %w", err)
	}
	defer rows.Close()

	var out []disclosure.Rule
	for rows.Next() {
		var (
			rule      disclosure.Rule
			schemeCol *string
			condition []byte
			action    string
		)
		if err := rows.Scan(
			&rule.ID,
			&schemeCol,
			&rule.RuleName,
			&rule.TriggerField,
			&condition,
			&rule.TargetFields,
			&action,
			&rule.Priority,
			&rule.IsActive,
		); err != nil {
			return nil, fmt.Errorf("rules: scan rule: %w", err)
		}
		if schemeCol != nil {
			rule.GrantSchemeID = *schemeCol
		}
		rule.Action = disclosure.Action(action)
		if err := json.Unmarshal(condition, &rule.TriggerCondition); err != nil {
			s.logger.Warn("skipping rule with undecodable condition", "rule_id", rule.ID, "error", err)
			continue
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rules: iterate rules: %w", err)
	}
	return keepValid(out, s.logger), nil
}

// Upsert validates and stores a rule, assigning an id when empty.
func (s *PostgresStore) Upsert(ctx context.Context, rule disclosure.Rule) (disclosure.Rule, error) {
	if err := rule.Validate(); err != nil {
		return rule, err
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	condition, err := json.Marshal(rule.TriggerCondition)
	if err != nil {
		return rule, fmt.Errorf("rules: encode condition: %w", err)
	}
	var scheme *string
	if rule.GrantSchemeID != "" {
		scheme = &rule.GrantSchemeID
	}

	query := `
		INSERT INTO disclosure_rules (id, grant_scheme_id, rule_name, trigger_field, trigger_condition,
		                              target_fields, action, priority, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			grant_scheme_id = EXCLUDED.grant_scheme_id,
			rule_name = EXCLUDED.rule_name,
			trigger_field = EXCLUDED.trigger_field,
			trigger_condition = EXCLUDED.trigger_condition,
			target_fields = EXCLUDED.target_fields,
			action = EXCLUDED.action,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query,
		rule.ID,
		scheme,
		rule.RuleName,
		rule.TriggerField,
		condition,
		rule.TargetFields,
		string(rule.Action),
		rule.Priority,
		rule.IsActive,
	); err != nil {
		return rule, fmt.Errorf("rules: upsert rule: %w", err)
	}
	return rule, nil
}
