package disclosure

import (
	"fmt"
	"sort"
	"strings"
)

// Operator is the comparison a trigger condition performs.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpInArray     Operator = "in_array"
)

// Valid reports whether op is one of the supported operators.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpContains, OpInArray:
		return true
	default:
		return false
	}
}

// Action is what a matching rule does to its target fields.
type Action string

const (
	ActionShow     Action = "show"
	ActionHide     Action = "hide"
	ActionRequire  Action = "require"
	ActionOptional Action = "optional"
)

// Valid reports whether a is one of the supported actions.
func (a Action) Valid() bool {
	switch a {
	case ActionShow, ActionHide, ActionRequire, ActionOptional:
		return true
	default:
		return false
	}
}

// Visible reports whether the action leaves its targets visible.
func (a Action) Visible() bool {
	return a == ActionShow || a == ActionRequire
}

// Required reports whether the action makes its targets required.
func (a Action) Required() bool {
	return a == ActionRequire
}

// Condition is the predicate a rule evaluates against its trigger field.
type Condition struct {
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
	// Logic is carried for rule authors; evaluation ignores it.
	Logic string `json:"logic,omitempty"`
}

// Rule is a conditional visibility instruction for one or more fields.
type Rule struct {
	ID               string    `json:"id"`
	GrantSchemeID    string    `json:"grant_scheme_id,omitempty"`
	RuleName         string    `json:"rule_name"`
	TriggerField     string    `json:"trigger_field"`
	TriggerCondition Condition `json:"trigger_condition"`
	TargetFields     []string  `json:"target_fields"`
	Action           Action    `json:"action"`
	Priority         int       `json:"priority"`
	IsActive         bool      `json:"is_active"`
}

// Global reports whether the rule applies across every grant scheme.
func (r Rule) Global() bool {
	return strings.TrimSpace(r.GrantSchemeID) == ""
}

// AppliesTo reports whether the rule is active and scoped to schemeID or global.
func (r Rule) AppliesTo(schemeID string) bool {
	if !r.IsActive {
		return false
	}
	return r.Global() || r.GrantSchemeID == schemeID
}

// Validate checks the rule definition. Loaders call it so bad rules are
// rejected up front instead of silently never matching.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.TriggerField) == "" {
		return fmt.Errorf("rule %q: %w", r.ID, ErrMissingTriggerField)
	}
	if !r.TriggerCondition.Operator.Valid() {
		return fmt.Errorf("rule %q: %w: %q", r.ID, ErrUnknownOperator, r.TriggerCondition.Operator)
	}
	if !r.Action.Valid() {
		return fmt.Errorf("rule %q: %w: %q", r.ID, ErrUnknownAction, r.Action)
	}
	targets := 0
	for _, field := range r.TargetFields {
		if strings.TrimSpace(field) != "" {
			targets++
		}
	}
	if targets == 0 {
		return fmt.Errorf("rule %q: %w", r.ID, ErrMissingTargets)
	}
	return nil
}

// SortByPriority orders rules by descending priority. Rules with equal
// priority keep their relative order.
func SortByPriority(rules []Rule) []Rule {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}
