package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// StaticStore serves a fixed rule set, typically loaded from RULES_FILE.
type StaticStore struct {
	rules []disclosure.Rule
}

// NewStaticStore keeps the valid rules, ordered by descending priority.
func NewStaticStore(rules []disclosure.Rule, logger *logging.Logger) *StaticStore {
	return &StaticStore{rules: disclosure.SortByPriority(keepValid(rules, logger))}
}

// LoadFile reads a JSON rules file. The file holds either an array of rules
// or an object with a "rules" array.
func LoadFile(path string, logger *logging.Logger) (*StaticStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleFile, err)
	}
	rules, err := decodeRules(data)
	if err != nil {
		return nil, err
	}
	return NewStaticStore(rules, logger), nil
}

func decodeRules(data []byte) ([]disclosure.Rule, error) {
	var rules []disclosure.Rule
	if err := json.Unmarshal(data, &rules); err == nil {
		return rules, nil
	}
	var wrapped struct {
		Rules []disclosure.Rule `json:"rules"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleFile, err)
	}
	return wrapped.Rules, nil
}

// Rules returns a copy of every loaded rule, active or not.
func (s *StaticStore) Rules() []disclosure.Rule {
	out := make([]disclosure.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// ActiveRules implements Store.
func (s *StaticStore) ActiveRules(ctx context.Context, schemeID string) ([]disclosure.Rule, error) {
	out := make([]disclosure.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		if rule.AppliesTo(schemeID) {
			out = append(out, rule)
		}
	}
	return out, nil
}
