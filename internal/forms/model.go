package forms

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultSessionType tags sessions created without an explicit type.
const DefaultSessionType = "application_form"

// Session is one attempt by a user to fill in an application form.
type Session struct {
	ID                   string         `json:"id"`
	UserID               string         `json:"user_id"`
	GrantID              string         `json:"grant_id,omitempty"`
	ApplicationID        string         `json:"application_id,omitempty"`
	SessionType          string         `json:"session_type"`
	Status               Status         `json:"status"`
	StartedAt            time.Time      `json:"started_at"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	AbandonedAt          *time.Time     `json:"abandoned_at,omitempty"`
	CompletionPercentage int            `json:"completion_percentage"`
	TimeSpentSeconds     int            `json:"time_spent_seconds"`
	FieldsCompleted      int            `json:"fields_completed"`
	FieldsTotal          int            `json:"fields_total"`
	UserAgent            string         `json:"user_agent,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// CreateSessionRequest is the input for starting a session.
type CreateSessionRequest struct {
	UserID        string         `json:"-"`
	GrantID       string         `json:"grant_id"`
	ApplicationID string         `json:"application_id"`
	SessionType   string         `json:"session_type"`
	FieldsTotal   int            `json:"fields_total"`
	UserAgent     string         `json:"user_agent"`
	Metadata      map[string]any `json:"metadata"`
}

// Validate validates the create session request
func (r *CreateSessionRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrMissingUserID
	}
	if r.FieldsTotal < 0 {
		return ErrNegativeCounter
	}
	return nil
}

// SessionPatch carries a partial update. Nil fields are left untouched.
// CompletedAt and AbandonedAt are derived from Status by the service.
type SessionPatch struct {
	GrantID              *string        `json:"grant_id,omitempty"`
	ApplicationID        *string        `json:"application_id,omitempty"`
	CompletionPercentage *int           `json:"completion_percentage,omitempty"`
	TimeSpentSeconds     *int           `json:"time_spent_seconds,omitempty"`
	FieldsCompleted      *int           `json:"fields_completed,omitempty"`
	FieldsTotal          *int           `json:"fields_total,omitempty"`
	UserAgent            *string        `json:"user_agent,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	Status               *Status        `json:"status,omitempty"`

	CompletedAt    *time.Time `json:"-"`
	AbandonedAt    *time.Time `json:"-"`
	// ExpectedStatus guards a status change: the write only happens while
	// the stored status still equals it.
	ExpectedStatus *Status    `json:"-"`
}

// Validate checks the supplied fields.
func (p *SessionPatch) Validate() error {
	if p.CompletionPercentage != nil && (*p.CompletionPercentage < 0 || *p.CompletionPercentage > 100) {
		return ErrInvalidCompletion
	}
	for _, counter := range []*int{p.TimeSpentSeconds, p.FieldsCompleted, p.FieldsTotal} {
		if counter != nil && *counter < 0 {
			return ErrNegativeCounter
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p *SessionPatch) Empty() bool {
	return p.GrantID == nil && p.ApplicationID == nil && p.CompletionPercentage == nil &&
		p.TimeSpentSeconds == nil && p.FieldsCompleted == nil && p.FieldsTotal == nil &&
		p.UserAgent == nil && p.Metadata == nil && p.Status == nil &&
		p.CompletedAt == nil && p.AbandonedAt == nil
}

// apply copies the supplied fields onto s.
func (p *SessionPatch) apply(s *Session) {
	if p.GrantID != nil {
		s.GrantID = *p.GrantID
	}
	if p.ApplicationID != nil {
		s.ApplicationID = *p.ApplicationID
	}
	if p.CompletionPercentage != nil {
		s.CompletionPercentage = *p.CompletionPercentage
	}
	if p.TimeSpentSeconds != nil {
		s.TimeSpentSeconds = *p.TimeSpentSeconds
	}
	if p.FieldsCompleted != nil {
		s.FieldsCompleted = *p.FieldsCompleted
	}
	if p.FieldsTotal != nil {
		s.FieldsTotal = *p.FieldsTotal
	}
	if p.UserAgent != nil {
		s.UserAgent = *p.UserAgent
	}
	if p.Metadata != nil {
		s.Metadata = p.Metadata
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.CompletedAt != nil {
		s.CompletedAt = p.CompletedAt
	}
	if p.AbandonedAt != nil {
		s.AbandonedAt = p.AbandonedAt
	}
}

// InteractionType is the kind of user action recorded on a field.
type InteractionType string

const (
	InteractionFocus           InteractionType = "focus"
	InteractionBlur            InteractionType = "blur"
	InteractionChange          InteractionType = "change"
	InteractionSubmit          InteractionType = "submit"
	InteractionValidationError InteractionType = "validation_error"
	InteractionAIAssist        InteractionType = "ai_assist"
)

// Valid reports whether t is a supported interaction type.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionFocus, InteractionBlur, InteractionChange, InteractionSubmit,
		InteractionValidationError, InteractionAIAssist:
		return true
	default:
		return false
	}
}

// Interaction is one immutable user action on one field.
type Interaction struct {
	ID                 string          `json:"id"`
	SessionID          string          `json:"session_id"`
	FieldName          string          `json:"field_name"`
	FieldType          string          `json:"field_type"`
	InteractionType    InteractionType `json:"interaction_type"`
	FieldValue         *string         `json:"field_value,omitempty"`
	TimeSpentSeconds   int             `json:"time_spent_seconds"`
	ValidationErrors   []string        `json:"validation_errors"`
	AISuggestionsShown bool            `json:"ai_suggestions_shown"`
	AIAssistanceUsed   bool            `json:"ai_assistance_used"`
	InteractionOrder   int             `json:"interaction_order"`
	Metadata           map[string]any  `json:"metadata,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// TrackInteractionRequest is the input for recording an interaction.
// FieldValue accepts any JSON value; non-strings are stored as JSON text.
type TrackInteractionRequest struct {
	SessionID          string          `json:"session_id"`
	FieldName          string          `json:"field_name"`
	FieldType          string          `json:"field_type"`
	InteractionType    InteractionType `json:"interaction_type"`
	FieldValue         any             `json:"field_value"`
	TimeSpentSeconds   int             `json:"time_spent_seconds"`
	ValidationErrors   []string        `json:"validation_errors"`
	AISuggestionsShown bool            `json:"ai_suggestions_shown"`
	AIAssistanceUsed   bool            `json:"ai_assistance_used"`
	InteractionOrder   int             `json:"interaction_order"`
	Metadata           map[string]any  `json:"metadata"`
}

// Validate validates the track interaction request
func (r *TrackInteractionRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" ||
		strings.TrimSpace(r.FieldName) == "" ||
		strings.TrimSpace(r.FieldType) == "" ||
		strings.TrimSpace(string(r.InteractionType)) == "" {
		return ErrMissingInteractionField
	}
	if !r.InteractionType.Valid() {
		return ErrInvalidInteractionType
	}
	if r.TimeSpentSeconds < 0 {
		return ErrNegativeCounter
	}
	return nil
}

func (r *TrackInteractionRequest) fieldValue() *string {
	switch v := r.FieldValue.(type) {
	case nil:
		return nil
	case string:
		return &v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		s := string(b)
		return &s
	}
}

// InteractionSummary is the session aggregate derived from its interactions.
type InteractionSummary struct {
	SessionID        string `json:"session_id"`
	Interactions     int    `json:"interactions"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
	FieldsCompleted  int    `json:"fields_completed"`
}

// countsTowardCompletion reports whether an interaction marks its field as filled.
func countsTowardCompletion(i Interaction) bool {
	if i.InteractionType != InteractionChange && i.InteractionType != InteractionBlur {
		return false
	}
	return i.FieldValue != nil && *i.FieldValue != ""
}
