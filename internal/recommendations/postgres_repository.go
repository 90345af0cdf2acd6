package recommendations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const recommendationColumns = `id, session_id, field_name, recommendation_type, recommendation_text,
		confidence_score, ai_model_used, user_action, created_at, actioned_at`

// PostgresRepository stores recommendations in field_recommendations.
type PostgresRepository struct {
	pool rowQuerier
}

// NewPostgresRepository panics on a nil pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("recommendations: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithExec(exec rowQuerier) *PostgresRepository {
	if exec == nil {
		panic("recommendations: exec required")
	}
	return &PostgresRepository{pool: exec}
}

// InsertBatch writes the batch in a single statement, so a constraint
// violation on any row leaves the table untouched.
func (r *PostgresRepository) InsertBatch(ctx context.Context, recs []Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	n := len(recs)
	var (
		ids         = make([]string, n)
		sessions    = make([]string, n)
		fields      = make([]string, n)
		types       = make([]string, n)
		texts       = make([]string, n)
		confidences = make([]float64, n)
		models      = make([]string, n)
		index       = make(map[string]int, n)
	)
	for i := range recs {
		if recs[i].ID == "" {
			recs[i].ID = uuid.New().String()
		}
		ids[i] = recs[i].ID
		sessions[i] = recs[i].SessionID
		fields[i] = recs[i].FieldName
		types[i] = string(recs[i].Type)
		texts[i] = recs[i].Text
		confidences[i] = recs[i].Confidence
		models[i] = recs[i].AIModelUsed
		index[recs[i].ID] = i
	}

	rows, err := r.pool.Query(ctx, `
		INSERT INTO field_recommendations (id, session_id, field_name, recommendation_type,
		                                   recommendation_text, confidence_score, ai_model_used)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::float8[], $7::text[])
		RETURNING id, created_at
	`, ids, sessions, fields, types, texts, confidences, models)
	if err != nil {
		return fmt.Errorf("recommendations: insert batch failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &createdAt); err != nil {
			return fmt.Errorf("recommendations: scan inserted row: %w", err)
		}
		if i, ok := index[id]; ok {
			recs[i].CreatedAt = createdAt
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("recommendations: insert batch failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM field_recommendations WHERE id = $1`
	rec, err := scanRecommendation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("recommendations: select failed: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Pending(ctx context.Context, sessionID string) ([]Recommendation, error) {
	query := `SELECT ` + recommendationColumns + `
		FROM field_recommendations
		WHERE session_id = $1 AND user_action IS NULL
		ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("recommendations: list pending: %w", err)
	}
	defer rows.Close()

	out := []Recommendation{}
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("recommendations: scan pending: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SetAction(ctx context.Context, id string, action UserAction) (*Recommendation, error) {
	query := `
		UPDATE field_recommendations
		SET user_action = $2, actioned_at = NOW()
		WHERE id = $1
		RETURNING ` + recommendationColumns
	rec, err := scanRecommendation(r.pool.QueryRow(ctx, query, id, string(action)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("recommendations: set action: %w", err)
	}
	return rec, nil
}

func scanRecommendation(row pgx.Row) (*Recommendation, error) {
	var (
		rec        Recommendation
		recType    string
		userAction *string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.FieldName,
		&recType,
		&rec.Text,
		&rec.Confidence,
		&rec.AIModelUsed,
		&userAction,
		&rec.CreatedAt,
		&rec.ActionedAt,
	); err != nil {
		return nil, err
	}
	rec.Type = Type(recType)
	if userAction != nil {
		action := UserAction(*userAction)
		rec.UserAction = &action
	}
	return &rec, nil
}
