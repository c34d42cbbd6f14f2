package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"logward/core"
	"logward/rules"
	"logward/storage"
)

const failedLoginRule = `
title: Repeated Failed Logins
id: rule-failed-login
status: stable
level: high
tags:
  - attack.credential_access
  - attack.t1110
logsource:
  service: auth-service
detection:
  selection:
    event_type: login_failed
  filter:
    source_ip: 10.0.0.*
  condition: selection and not filter
`

const keywordRule = `
title: Panic In Logs
id: rule-panic
level: critical
logsource: {}
detection:
  keywords:
    - "panic:"
    - "runtime error"
  condition: keywords
`

func parseTestRule(t *testing.T, raw string) *rules.RuleDocument {
	t.Helper()
	doc, verrs := rules.Parse([]byte(raw))
	require.Empty(t, verrs)
	return doc
}

func newTestEngine(t *testing.T, store storage.DetectionRuleStore) *Engine {
	t.Helper()
	engine, err := NewEngine(context.Background(), store, EngineOptions{
		CacheSize:    64,
		BatchWorkers: 2,
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func authFailEntry(sourceIP string) *core.LogEntry {
	return &core.LogEntry{
		ID:             "log-1",
		OrganizationID: "org-1",
		ProjectID:      "proj-1",
		Time:           time.Now(),
		Service:        "auth-service",
		Level:          "warning",
		Message:        "authentication failed",
		Metadata: map[string]interface{}{
			"event_type": "login_failed",
			"source_ip":  sourceIP,
		},
	}
}

func TestEvaluateLog_MatchWithFilterException(t *testing.T) {
	store := storage.NewMockRuleStore(parseTestRule(t, failedLoginRule))
	engine := newTestEngine(t, store)

	result, err := engine.EvaluateLog(context.Background(), authFailEntry("203.0.113.7"), "org-1", nil)
	require.NoError(t, err)
	require.True(t, result.Matched)
	require.Len(t, result.Matches, 1)

	match := result.Matches[0]
	assert.Equal(t, "rule-failed-login", match.RuleID)
	assert.Equal(t, "Repeated Failed Logins", match.Title)
	assert.Equal(t, "high", match.Level)
	assert.Equal(t, []string{"credential_access"}, match.Tactics)
	assert.Equal(t, []string{"T1110"}, match.Techniques)
}

func TestEvaluateLog_FilterSuppressesMatch(t *testing.T) {
	store := storage.NewMockRuleStore(parseTestRule(t, failedLoginRule))
	engine := newTestEngine(t, store)

	// Internal source addresses are filtered out by the rule's exception.
	result, err := engine.EvaluateLog(context.Background(), authFailEntry("10.0.0.44"), "org-1", nil)
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Empty(t, result.Matches)
}

func TestEvaluateLog_LogsourceGate(t *testing.T) {
	store := storage.NewMockRuleStore(parseTestRule(t, failedLoginRule))
	engine := newTestEngine(t, store)

	entry := authFailEntry("203.0.113.7")
	entry.Service = "billing-service"
	result, err := engine.EvaluateLog(context.Background(), entry, "org-1", nil)
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestEvaluateLog_UnknownServicePassesLogsourceGate(t *testing.T) {
	store := storage.NewMockRuleStore(parseTestRule(t, failedLoginRule))
	engine := newTestEngine(t, store)

	entry := authFailEntry("203.0.113.7")
	entry.Service = core.UnknownValue
	result, err := engine.EvaluateLog(context.Background(), entry, "org-1", nil)
	require.NoError(t, err)
	assert.True(t, result.Matched)
}

func TestEvaluateLog_KeywordRule(t *testing.T) {
	store := storage.NewMockRuleStore(parseTestRule(t, keywordRule))
	engine := newTestEngine(t, store)

	entry := &core.LogEntry{
		ID:      "log-2",
		Service: "worker",
		Level:   "error",
		Message: "panic: nil pointer dereference",
	}
	result, err := engine.EvaluateLog(context.Background(), entry, "org-1", nil)
	require.NoError(t, err)
	require.True(t, result.Matched)
	assert.Equal(t, "rule-panic", result.Matches[0].RuleID)
}

func TestEvaluateLog_MultipleRulesCanMatch(t *testing.T) {
	store := storage.NewMockRuleStore(
		parseTestRule(t, failedLoginRule),
		parseTestRule(t, keywordRule),
	)
	engine := newTestEngine(t, store)

	entry := authFailEntry("203.0.113.7")
	entry.Message = "panic: login storm"
	result, err := engine.EvaluateLog(context.Background(), entry, "org-1", nil)
	require.NoError(t, err)
	assert.Len(t, result.Matches, 2)
}

func TestEvaluateLog_MatchesOrderedBySeverity(t *testing.T) {
	// The high rule is listed before the critical one; results still come
	// back most severe first.
	store := storage.NewMockRuleStore(
		parseTestRule(t, failedLoginRule),
		parseTestRule(t, keywordRule),
	)
	engine := newTestEngine(t, store)

	entry := authFailEntry("203.0.113.7")
	entry.Message = "panic: login storm"
	result, err := engine.EvaluateLog(context.Background(), entry, "org-1", nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, "critical", result.Matches[0].Level)
	assert.Equal(t, "high", result.Matches[1].Level)
}

func TestEvaluateLog_FieldMapAndKeywordsCombined(t *testing.T) {
	rule := parseTestRule(t, `
title: Error With Failure Text
id: rule-combined
logsource: {}
detection:
  selection:
    level: error
  keywords:
    - timeout
    - failed
  condition: selection and keywords
`)
	store := storage.NewMockRuleStore(rule)
	engine := newTestEngine(t, store)

	matched := &core.LogEntry{ID: "m", Service: "api", Level: "error", Message: "connection failed"}
	result, err := engine.EvaluateLog(context.Background(), matched, "org-1", nil)
	require.NoError(t, err)
	assert.True(t, result.Matched)

	unmatched := &core.LogEntry{ID: "u", Service: "api", Level: "info", Message: "connection failed"}
	result, err = engine.EvaluateLog(context.Background(), unmatched, "org-1", nil)
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestEvaluateLog_BrokenRuleIsolated(t *testing.T) {
	broken := &rules.RuleDocument{
		ID:         "rule-broken",
		Title:      "Broken",
		Condition:  "selection and", // fails to compile
		Selections: map[string]rules.Selection{"selection": {Kind: rules.SelectionKeywords, Keywords: []string{"x"}}},
	}
	store := storage.NewMockRuleStore(broken, parseTestRule(t, keywordRule))
	engine := newTestEngine(t, store)

	entry := &core.LogEntry{ID: "log-3", Service: "worker", Level: "error", Message: "runtime error: index out of range"}
	result, err := engine.EvaluateLog(context.Background(), entry, "org-1", nil)
	require.NoError(t, err)
	require.True(t, result.Matched)
	assert.Equal(t, "rule-panic", result.Matches[0].RuleID)
}

func TestEvaluateBatch_LoadsRulesOnce(t *testing.T) {
	store := storage.NewMockRuleStore(parseTestRule(t, keywordRule))
	engine := newTestEngine(t, store)

	entries := make([]*core.LogEntry, 50)
	for i := range entries {
		entries[i] = &core.LogEntry{ID: "log", Service: "worker", Level: "error", Message: "panic: boom"}
	}
	results, err := engine.EvaluateBatch(context.Background(), entries, "org-1", nil)
	require.NoError(t, err)
	require.Len(t, results, 50)
	for _, r := range results {
		require.NotNil(t, r)
		assert.True(t, r.Matched)
	}
	assert.Equal(t, 1, store.ListCalls, "batch must load the rule set a single time")
}

func TestEvaluateBatch_ResultsPositional(t *testing.T) {
	store := storage.NewMockRuleStore(parseTestRule(t, keywordRule))
	engine := newTestEngine(t, store)

	entries := []*core.LogEntry{
		{ID: "a", Service: "worker", Level: "error", Message: "panic: boom"},
		{ID: "b", Service: "worker", Level: "info", Message: "all fine"},
		{ID: "c", Service: "worker", Level: "error", Message: "runtime error: oops"},
	}
	results, err := engine.EvaluateBatch(context.Background(), entries, "org-1", nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].LogID)
	assert.True(t, results[0].Matched)
	assert.False(t, results[1].Matched)
	assert.True(t, results[2].Matched)
}

func TestEvaluateLog_StoreErrorPropagates(t *testing.T) {
	store := storage.NewMockRuleStore()
	store.ListErr = assert.AnError
	engine := newTestEngine(t, store)

	_, err := engine.EvaluateLog(context.Background(), authFailEntry("203.0.113.7"), "org-1", nil)
	assert.Error(t, err)
}
