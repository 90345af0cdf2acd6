package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const sessionColumns = `id, user_id, grant_id, application_id, session_type, status,
		started_at, completed_at, abandoned_at, completion_percentage, time_spent_seconds,
		fields_completed, fields_total, user_agent, metadata, updated_at`

// PostgresRepository stores sessions in the form_sessions table.
type PostgresRepository struct {
	pool rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("forms: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithExec(exec rowQuerier) *PostgresRepository {
	if exec == nil {
		panic("forms: exec required")
	}
	return &PostgresRepository{pool: exec}
}

// Create inserts a new active session.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	metadata, err := encodeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO form_sessions (id, user_id, grant_id, application_id, session_type, status, fields_total, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + sessionColumns
	row := r.pool.QueryRow(ctx, query,
		uuid.New().String(),
		req.UserID,
		nullableString(req.GrantID),
		nullableString(req.ApplicationID),
		sessionTypeOrDefault(req.SessionType),
		string(StatusActive),
		req.FieldsTotal,
		nullableString(req.UserAgent),
		metadata,
	)
	session, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("forms: insert session: %w", err)
	}
	return session, nil
}

// GetByID fetches one session.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM form_sessions WHERE id = $1`
	session, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("forms: select session: %w", err)
	}
	return session, nil
}

// Patch updates only the supplied columns.
func (r *PostgresRepository) Patch(ctx context.Context, id string, patch *SessionPatch) (*Session, error) {
	sets := make([]string, 0, 12)
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.GrantID != nil {
		add("grant_id", nullableString(*patch.GrantID))
	}
	if patch.ApplicationID != nil {
		add("application_id", nullableString(*patch.ApplicationID))
	}
	if patch.CompletionPercentage != nil {
		add("completion_percentage", *patch.CompletionPercentage)
	}
	if patch.TimeSpentSeconds != nil {
		add("time_spent_seconds", *patch.TimeSpentSeconds)
	}
	if patch.FieldsCompleted != nil {
		add("fields_completed", *patch.FieldsCompleted)
	}
	if patch.FieldsTotal != nil {
		add("fields_total", *patch.FieldsTotal)
	}
	if patch.UserAgent != nil {
		add("user_agent", nullableString(*patch.UserAgent))
	}
	if patch.Metadata != nil {
		metadata, err := encodeMetadata(patch.Metadata)
		if err != nil {
			return nil, err
		}
		add("metadata", metadata)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.CompletedAt != nil {
		add("completed_at", *patch.CompletedAt)
	}
	if patch.AbandonedAt != nil {
		add("abandoned_at", *patch.AbandonedAt)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")

	where := ` WHERE id = $1`
	if patch.ExpectedStatus != nil {
		args = append(args, string(*patch.ExpectedStatus))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query := `UPDATE form_sessions SET ` + strings.Join(sets, ", ") + where + ` RETURNING ` + sessionColumns
	session, err := scanSession(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if patch.ExpectedStatus == nil {
				return nil, ErrSessionNotFound
			}
			// Zero rows is either a missing session or a lost status race.
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, errStatusConflict
		}
		return nil, fmt.Errorf("forms: update session: %w", err)
	}
	return session, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		s                                 Session
		grantID, applicationID, userAgent *string
		status                            string
		completedAt, abandonedAt          *time.Time
		metadata                          []byte
	)
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&grantID,
		&applicationID,
		&s.SessionType,
		&status,
		&s.StartedAt,
		&completedAt,
		&abandonedAt,
		&s.CompletionPercentage,
		&s.TimeSpentSeconds,
		&s.FieldsCompleted,
		&s.FieldsTotal,
		&userAgent,
		&metadata,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.GrantID = derefString(grantID)
	s.ApplicationID = derefString(applicationID)
	s.UserAgent = derefString(userAgent)
	s.Status = Status(status)
	s.CompletedAt = completedAt
	s.AbandonedAt = abandonedAt
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &s, nil
}

func encodeMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("forms: encode metadata: %w", err)
	}
	return b, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
