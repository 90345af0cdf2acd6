// Package rules loads disclosure rules from Postgres, a JSON file, or a
// Redis read-through cache in front of either.
package rules

import (
	"context"
	"errors"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// ErrRuleFile is returned when a rules file cannot be read or decoded.
var ErrRuleFile = errors.New("rules: invalid rules file")

// Store returns the active rules for a grant scheme: global rules plus the
// scheme's own rules, ordered by descending priority. An empty schemeID
// yields only global rules.
type Store interface {
	ActiveRules(ctx context.Context, schemeID string) ([]disclosure.Rule, error)
}

// keepValid drops rules that fail validation so a bad row never reaches the engine.
func keepValid(rules []disclosure.Rule, logger *logging.Logger) []disclosure.Rule {
	out := make([]disclosure.Rule, 0, len(rules))
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			if logger != nil {
				logger.Warn("skipping invalid disclosure rule", "rule_id", rule.ID, "error", err)
			}
			continue
		}
		out = append(out, rule)
	}
	return out
}
