package forms

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SQLInteractionLog persists interactions to field_interactions through database/sql.
type SQLInteractionLog struct {
	db *sql.DB
}

// NewSQLInteractionLog wraps an open database handle.
func NewSQLInteractionLog(db *sql.DB) *SQLInteractionLog {
	if db == nil {
		panic("forms: sql db required")
	}
	return &SQLInteractionLog{db: db}
}

// Insert adds one interaction row.
func (l *SQLInteractionLog) Insert(ctx context.Context, interaction *Interaction) error {
	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}
	metadata, err := encodeMetadata(interaction.Metadata)
	if err != nil {
		return err
	}
	validationErrors := interaction.ValidationErrors
	if validationErrors == nil {
		validationErrors = []string{}
	}

	var createdAt time.Time
	err = l.db.QueryRowContext(ctx, `
		INSERT INTO field_interactions (id, session_id, field_name, field_type, interaction_type,
		       field_value, time_spent_seconds, validation_errors, ai_suggestions_shown,
		       ai_assistance_used, interaction_order, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`,
		interaction.ID, interaction.SessionID, interaction.FieldName, interaction.FieldType,
		string(interaction.InteractionType), interaction.FieldValue, interaction.TimeSpentSeconds,
		pq.Array(validationErrors), interaction.AISuggestionsShown, interaction.AIAssistanceUsed,
		interaction.InteractionOrder, metadata,
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("forms: insert interaction: %w", err)
	}
	interaction.CreatedAt = createdAt
	return nil
}

// ListBySession returns the session's interactions in recorded order.
func (l *SQLInteractionLog) ListBySession(ctx context.Context, sessionID string) ([]Interaction, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, session_id, field_name, field_type, interaction_type, field_value,
		       time_spent_seconds, validation_errors, ai_suggestions_shown, ai_assistance_used,
		       interaction_order, metadata, created_at
		FROM field_interactions
		WHERE session_id = $1
		ORDER BY interaction_order, created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("forms: list interactions: %w", err)
	}
	defer rows.Close()

	out := []Interaction{}
	for rows.Next() {
		var (
			i          Interaction
			kind       string
			fieldValue sql.NullString
			metadata   []byte
		)
		if err := rows.Scan(&i.ID, &i.SessionID, &i.FieldName, &i.FieldType, &kind, &fieldValue,
			&i.TimeSpentSeconds, pq.Array(&i.ValidationErrors), &i.AISuggestionsShown,
			&i.AIAssistanceUsed, &i.InteractionOrder, &metadata, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("forms: scan interaction: %w", err)
		}
		i.InteractionType = InteractionType(kind)
		if fieldValue.Valid {
			v := fieldValue.String
			i.FieldValue = &v
		}
		if i.ValidationErrors == nil {
			i.ValidationErrors = []string{}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &i.Metadata); err != nil {
				return nil, fmt.Errorf("forms: decode interaction metadata: %w", err)
			}
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// Summarize aggregates time and filled fields in SQL.
func (l *SQLInteractionLog) Summarize(ctx context.Context, sessionID string) (*InteractionSummary, error) {
	summary := &InteractionSummary{SessionID: sessionID}
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(time_spent_seconds), 0),
		       COUNT(DISTINCT field_name) FILTER (
		           WHERE interaction_type IN ('change', 'blur')
		             AND field_value IS NOT NULL AND field_value <> '')
		FROM field_interactions
		WHERE session_id = $1`, sessionID).Scan(
		&summary.Interactions, &summary.TimeSpentSeconds, &summary.FieldsCompleted)
	if err != nil {
		return nil, fmt.Errorf("forms: summarize interactions: %w", err)
	}
	return summary, nil
}
