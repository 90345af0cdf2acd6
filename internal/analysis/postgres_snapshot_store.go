package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
)

type txQuerier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSnapshotStore stores one row per field in field_visibility_snapshots.
type PostgresSnapshotStore struct {
	db txQuerier
}

var _ SnapshotStore = (*PostgresSnapshotStore)(nil)

// NewPostgresSnapshotStore creates a snapshot store backed by pgx.
func NewPostgresSnapshotStore(pool *pgxpool.Pool) *PostgresSnapshotStore {
	if pool == nil {
		panic("analysis: pgx pool cannot be nil")
	}
	return &PostgresSnapshotStore{db: pool}
}

func newPostgresSnapshotStoreWithExec(db txQuerier) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{db: db}
}

// ReplaceSnapshot deletes the session's previous rows and writes the new
// visibility in a single transaction.
func (s *PostgresSnapshotStore) ReplaceSnapshot(ctx context.Context, sessionID string, visibility disclosure.Visibility) error {
	if sessionID == "" {
		return ErrMissingSessionID
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("analysis: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM field_visibility_snapshots WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("analysis: delete snapshot: %w", err)
	}

	if len(visibility) > 0 {
		cols := snapshotColumns(visibility)
		_, err := tx.Exec(ctx, `
			INSERT INTO field_visibility_snapshots
				(session_id, field_name, is_visible, is_required, visibility_reason, rule_id, recommendation_id)
			SELECT $1, f, v, r, reason, NULLIF(rule, ''), NULLIF(rec, '')
			FROM unnest($2::text[], $3::bool[], $4::bool[], $5::text[], $6::text[], $7::text[])
				AS t(f, v, r, reason, rule, rec)
		`, sessionID, cols.names, cols.visible, cols.required, cols.reasons, cols.ruleIDs, cols.recommendationIDs)
		if err != nil {
			return fmt.Errorf("analysis: insert snapshot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("analysis: commit snapshot: %w", err)
	}
	return nil
}

// GetSnapshot loads the stored visibility for a session.
func (s *PostgresSnapshotStore) GetSnapshot(ctx context.Context, sessionID string) (disclosure.Visibility, error) {
	rows, err := s.db.Query(ctx, `
		SELECT field_name, is_visible, is_required, visibility_reason,
			COALESCE(rule_id, ''), COALESCE(recommendation_id, '')
		FROM field_visibility_snapshots
		WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("analysis: query snapshot: %w", err)
	}
	defer rows.Close()

	visibility := make(disclosure.Visibility)
	for rows.Next() {
		var (
			state  disclosure.FieldVisibility
			reason string
		)
		if err := rows.Scan(&state.FieldName, &state.IsVisible, &state.IsRequired, &reason, &state.RuleID, &state.RecommendationID); err != nil {
			return nil, fmt.Errorf("analysis: scan snapshot: %w", err)
		}
		state.VisibilityReason = disclosure.Reason(reason)
		visibility[state.FieldName] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analysis: iterate snapshot: %w", err)
	}
	if len(visibility) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return visibility, nil
}

type snapshotArrays struct {
	names             []string
	visible           []bool
	required          []bool
	reasons           []string
	ruleIDs           []string
	recommendationIDs []string
}

// snapshotColumns flattens visibility into parallel arrays ordered by field name.
func snapshotColumns(visibility disclosure.Visibility) snapshotArrays {
	names := make([]string, 0, len(visibility))
	for name := range visibility {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := snapshotArrays{names: names}
	for _, name := range names {
		state := visibility[name]
		cols.visible = append(cols.visible, state.IsVisible)
		cols.required = append(cols.required, state.IsRequired)
		cols.reasons = append(cols.reasons, string(state.VisibilityReason))
		cols.ruleIDs = append(cols.ruleIDs, state.RuleID)
		cols.recommendationIDs = append(cols.recommendationIDs, state.RecommendationID)
	}
	return cols
}
