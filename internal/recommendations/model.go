package recommendations

import (
	"strings"
	"time"
)

// Type classifies what a recommendation asks the user to do.
type Type string

const (
	TypeShowNext      Type = "show_next"
	TypeSkipOptional  Type = "skip_optional"
	TypeProvideHelp   Type = "provide_help"
	TypeSuggestValue  Type = "suggest_value"
	TypeValidateInput Type = "validate_input"
)

func (t Type) Valid() bool {
	switch t {
	case TypeShowNext, TypeSkipOptional, TypeProvideHelp, TypeSuggestValue, TypeValidateInput:
		return true
	default:
		return false
	}
}

// UserAction is the feedback a user gives on a recommendation.
type UserAction string

const (
	ActionAccepted UserAction = "accepted"
	ActionRejected UserAction = "rejected"
	ActionIgnored  UserAction = "ignored"
)

func (a UserAction) Valid() bool {
	switch a {
	case ActionAccepted, ActionRejected, ActionIgnored:
		return true
	default:
		return false
	}
}

// ParseUserAction normalizes raw input and validates it.
func ParseUserAction(raw string) (UserAction, error) {
	action := UserAction(strings.ToLower(strings.TrimSpace(raw)))
	if !action.Valid() {
		return "", ErrInvalidAction
	}
	return action, nil
}

// Recommendation is one AI-suggested next action for a session.
type Recommendation struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	FieldName   string      `json:"field_name"`
	Type        Type        `json:"recommendation_type"`
	Text        string      `json:"recommendation_text"`
	Confidence  float64     `json:"confidence_score"`
	AIModelUsed string      `json:"ai_model_used"`
	UserAction  *UserAction `json:"user_action,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	ActionedAt  *time.Time  `json:"actioned_at,omitempty"`
}

// Pending reports whether the user has not acted on the recommendation yet.
func (r Recommendation) Pending() bool {
	return r.UserAction == nil
}
