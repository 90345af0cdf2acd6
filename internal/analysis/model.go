package analysis

import (
	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/internal/recommendations"
)

// DefaultFields is the field set every grant form starts from when none is configured.
var DefaultFields = []string{
	"organization_name",
	"project_title",
	"project_description",
	"requested_amount",
	"project_duration",
}

// FormAnalysis is the per-request aggregate returned to the form client.
// It is derived on every call and never stored.
type FormAnalysis struct {
	RecommendedFields  []string                          `json:"recommended_fields"`
	OptionalFields     []string                          `json:"optional_fields"`
	FieldVisibility    disclosure.Visibility             `json:"field_visibility"`
	NextSuggestedField string                            `json:"next_suggested_field,omitempty"`
	CompletionEstimate int                               `json:"completion_estimate"`
	Recommendations    []recommendations.Recommendation `json:"recommendations"`
}

// AnalyzeRequest is the body of POST /sessions/{sessionID}/analyze.
type AnalyzeRequest struct {
	FormData      disclosure.FormData `json:"form_data"`
	GrantSchemeID string              `json:"grant_scheme_id,omitempty"`
}
