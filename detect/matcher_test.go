package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"logward/core"
	"logward/rules"
)

func fieldMap(constraints ...rules.FieldConstraint) rules.Selection {
	return rules.Selection{Kind: rules.SelectionFieldMap, Fields: constraints}
}

func keywords(kws ...string) rules.Selection {
	return rules.Selection{Kind: rules.SelectionKeywords, Keywords: kws}
}

func TestValueMatches_Exact(t *testing.T) {
	assert.True(t, valueMatches("auth-service", "auth-service", false))
	assert.True(t, valueMatches("AUTH-SERVICE", "auth-service", false))
	assert.False(t, valueMatches("AUTH-SERVICE", "auth-service", true))
	assert.False(t, valueMatches("auth-service", "billing-service", false))
}

func TestValueMatches_PrefixWildcard(t *testing.T) {
	assert.True(t, valueMatches("auth-*", "auth-service", false))
	assert.True(t, valueMatches("auth-*", "auth-gateway", false))
	assert.False(t, valueMatches("auth-*", "billing-service", false))
}

func TestValueMatches_WildcardAnchored(t *testing.T) {
	// The pattern must cover the whole value, not a substring of it.
	assert.False(t, valueMatches("auth*", "my-auth-service", false))
	assert.True(t, valueMatches("*auth*", "my-auth-service", false))
	assert.True(t, valueMatches("*.exe", "payload.exe", false))
	assert.False(t, valueMatches("*.exe", "payload.exe.txt", false))
}

func TestValueMatches_RegexMetacharactersAreLiteral(t *testing.T) {
	assert.True(t, valueMatches("a.b", "a.b", false))
	assert.False(t, valueMatches("a.b", "axb", false))
	assert.False(t, valueMatches("a+b", "aab", false))
}

func TestMatchSelection_FieldMapAllFieldsMustHold(t *testing.T) {
	record := core.FlattenedRecord{"event_type": "login_failed", "source_ip": "10.0.0.5"}
	sel := fieldMap(
		rules.FieldConstraint{Field: "event_type", Values: []string{"login_failed"}},
		rules.FieldConstraint{Field: "source_ip", Values: []string{"10.0.0.5"}},
	)
	assert.True(t, MatchSelection(record, sel, false))

	sel.Fields[1].Values = []string{"192.168.1.1"}
	assert.False(t, MatchSelection(record, sel, false))
}

func TestMatchSelection_FieldMapAnyValueSuffices(t *testing.T) {
	record := core.FlattenedRecord{"level": "error"}
	sel := fieldMap(rules.FieldConstraint{Field: "level", Values: []string{"critical", "error"}})
	assert.True(t, MatchSelection(record, sel, false))
}

func TestMatchSelection_MissingFieldFails(t *testing.T) {
	record := core.FlattenedRecord{"message": "hello"}
	sel := fieldMap(rules.FieldConstraint{Field: "event_type", Values: []string{"login_failed"}})
	assert.False(t, MatchSelection(record, sel, false))
}

func TestMatchSelection_NonStringFieldCompared(t *testing.T) {
	record := core.FlattenedRecord{"status": 500}
	sel := fieldMap(rules.FieldConstraint{Field: "status", Values: []string{"500"}})
	assert.True(t, MatchSelection(record, sel, false))
}

func TestMatchSelection_KeywordsSubstring(t *testing.T) {
	record := core.FlattenedRecord{
		"message": "Failed password for root from 10.0.0.5",
		"status":  401,
	}
	assert.True(t, MatchSelection(record, keywords("failed password"), false))
	assert.True(t, MatchSelection(record, keywords("nope", "for root"), false))
	assert.False(t, MatchSelection(record, keywords("succeeded"), false))
}

func TestMatchSelection_KeywordsIgnoreNonStringFields(t *testing.T) {
	record := core.FlattenedRecord{"status": 401}
	assert.False(t, MatchSelection(record, keywords("401"), false))
}

func TestMatchSelection_KeywordsCaseSensitivity(t *testing.T) {
	record := core.FlattenedRecord{"message": "Failed Password"}
	assert.True(t, MatchSelection(record, keywords("failed password"), false))
	assert.False(t, MatchSelection(record, keywords("failed password"), true))
	assert.True(t, MatchSelection(record, keywords("Failed Password"), true))
}
