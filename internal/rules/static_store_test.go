package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

const rulesFixture = `[
  {"id": "global-low", "rule_name": "Partners", "trigger_field": "has_partners",
   "trigger_condition": {"operator": "equals", "value": true},
   "target_fields": ["partner_details"], "action": "show", "priority": 1, "is_active": true},
  {"id": "scheme-high", "grant_scheme_id": "innovation", "rule_name": "Large budget",
   "trigger_field": "requested_amount", "trigger_condition": {"operator": "greater_than", "value": 50000},
   "target_fields": ["detailed_budget"], "action": "require", "priority": 10, "is_active": true},
  {"id": "other-scheme", "grant_scheme_id": "arts", "rule_name": "Arts only",
   "trigger_field": "discipline", "trigger_condition": {"operator": "equals", "value": "music"},
   "target_fields": ["portfolio"], "action": "show", "priority": 5, "is_active": true},
  {"id": "inactive", "rule_name": "Retired", "trigger_field": "x",
   "trigger_condition": {"operator": "equals", "value": 1},
   "target_fields": ["y"], "action": "hide", "priority": 99, "is_active": false},
  {"id": "broken", "rule_name": "Bad operator", "trigger_field": "x",
   "trigger_condition": {"operator": "matches", "value": "a.*"},
   "target_fields": ["y"], "action": "show", "priority": 50, "is_active": true}
]`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func ruleIDs(rules []disclosure.Rule) []string {
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestLoadFile_FiltersAndOrders(t *testing.T) {
	store, err := LoadFile(writeFixture(t, rulesFixture), logging.Default())
	require.NoError(t, err)

	assert.Len(t, store.Rules(), 4, "invalid rule should be dropped at load time")

	rules, err := store.ActiveRules(context.Background(), "innovation")
	require.NoError(t, err)
	assert.Equal(t, []string{"scheme-high", "global-low"}, ruleIDs(rules))

	globalOnly, err := store.ActiveRules(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"global-low"}, ruleIDs(globalOnly))
}

func TestLoadFile_WrappedFormat(t *testing.T) {
	store, err := LoadFile(writeFixture(t, `{"rules": `+rulesFixture+`}`), logging.Default())
	require.NoError(t, err)

	rules, err := store.ActiveRules(context.Background(), "arts")
	require.NoError(t, err)
	assert.Equal(t, []string{"other-scheme", "global-low"}, ruleIDs(rules))
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"), logging.Default())
	assert.True(t, errors.Is(err, ErrRuleFile))

	_, err = LoadFile(writeFixture(t, "not json"), logging.Default())
	assert.True(t, errors.Is(err, ErrRuleFile))
}
