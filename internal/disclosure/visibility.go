package disclosure

import (
	"sort"
	"strings"
)

// Reason explains why a field has its current visibility.
type Reason string

const (
	ReasonDefault       Reason = "default"
	ReasonRuleTriggered Reason = "rule_triggered"
)

// FieldVisibility is the derived show/hide/require state of one field.
type FieldVisibility struct {
	FieldName        string `json:"field_name"`
	IsVisible        bool   `json:"is_visible"`
	IsRequired       bool   `json:"is_required"`
	VisibilityReason Reason `json:"visibility_reason"`
	RuleID           string `json:"rule_id,omitempty"`
	RecommendationID string `json:"recommendation_id,omitempty"`
}

// Visibility maps field names to their computed state.
type Visibility map[string]FieldVisibility

// ComputeVisibility seeds every default field as visible and required, then
// applies the active rules scoped to schemeID (or global) in the order given.
// A rule whose trigger path is missing from data does not match.
func ComputeVisibility(data FormData, rules []Rule, defaultFields []string, schemeID string) Visibility {
	visibility := make(Visibility, len(defaultFields))
	for _, field := range defaultFields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		visibility[field] = FieldVisibility{
			FieldName:        field,
			IsVisible:        true,
			IsRequired:       true,
			VisibilityReason: ReasonDefault,
		}
	}

	for _, rule := range rules {
		if !rule.AppliesTo(schemeID) {
			continue
		}
		value, ok := Lookup(data, rule.TriggerField)
		if !ok || !Evaluate(value, rule.TriggerCondition) {
			continue
		}
		for _, target := range rule.TargetFields {
			target = strings.TrimSpace(target)
			if target == "" {
				continue
			}
			visibility[target] = FieldVisibility{
				FieldName:        target,
				IsVisible:        rule.Action.Visible(),
				IsRequired:       rule.Action.Required(),
				VisibilityReason: ReasonRuleTriggered,
				RuleID:           rule.ID,
			}
		}
	}
	return visibility
}

// VisibleFields returns the sorted names of visible fields.
func (v Visibility) VisibleFields() []string {
	fields := make([]string, 0, len(v))
	for name, state := range v {
		if state.IsVisible {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// Partition splits visible fields into required and optional, both sorted.
func (v Visibility) Partition() (required, optional []string) {
	required = []string{}
	optional = []string{}
	for _, name := range v.VisibleFields() {
		if v[name].IsRequired {
			required = append(required, name)
		} else {
			optional = append(optional, name)
		}
	}
	return required, optional
}
