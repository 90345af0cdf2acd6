package forms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLInteractionLog_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := NewSQLInteractionLog(db)
	createdAt := time.Now().UTC()
	value := "Ada"

	mock.ExpectQuery("INSERT INTO field_interactions").
		WithArgs(sqlmock.AnyArg(), "sess-1", "applicant_name", "text", "change", &value, 4,
			pq.Array([]string{"too short"}), false, true, 2, []byte("{}")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	interaction := &Interaction{
		SessionID:        "sess-1",
		FieldName:        "applicant_name",
		FieldType:        "text",
		InteractionType:  InteractionChange,
		FieldValue:       &value,
		TimeSpentSeconds: 4,
		ValidationErrors: []string{"too short"},
		AIAssistanceUsed: true,
		InteractionOrder: 2,
	}
	require.NoError(t, log.Insert(context.Background(), interaction))
	assert.NotEmpty(t, interaction.ID)
	assert.True(t, interaction.CreatedAt.Equal(createdAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLInteractionLog_InsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO field_interactions").WillReturnError(errors.New("fk violation"))

	err = NewSQLInteractionLog(db).Insert(context.Background(), &Interaction{SessionID: "s", FieldName: "f", FieldType: "text", InteractionType: InteractionBlur})
	assert.Error(t, err)
}

func TestSQLInteractionLog_ListBySession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "session_id", "field_name", "field_type", "interaction_type", "field_value",
		"time_spent_seconds", "validation_errors", "ai_suggestions_shown", "ai_assistance_used",
		"interaction_order", "metadata", "created_at",
	}).
		AddRow("i-1", "sess-1", "applicant_name", "text", "focus", nil, 1, "{}", false, false, 1, []byte("{}"), now).
		AddRow("i-2", "sess-1", "applicant_name", "text", "change", "Ada", 3, `{"required"}`, true, false, 2, []byte(`{"k":"v"}`), now)

	mock.ExpectQuery("SELECT (.+) FROM field_interactions").WithArgs("sess-1").WillReturnRows(rows)

	out, err := NewSQLInteractionLog(db).ListBySession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Nil(t, out[0].FieldValue)
	assert.Equal(t, []string{}, out[0].ValidationErrors)
	require.NotNil(t, out[1].FieldValue)
	assert.Equal(t, "Ada", *out[1].FieldValue)
	assert.Equal(t, InteractionChange, out[1].InteractionType)
	assert.Equal(t, []string{"required"}, out[1].ValidationErrors)
	assert.Equal(t, "v", out[1].Metadata["k"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLInteractionLog_Summarize(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum", "filled"}).AddRow(6, 42, 3))

	summary, err := NewSQLInteractionLog(db).Summarize(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, &InteractionSummary{SessionID: "sess-1", Interactions: 6, TimeSpentSeconds: 42, FieldsCompleted: 3}, summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}
