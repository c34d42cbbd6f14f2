package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRule = `
title: Suspicious Login Burst
id: 5f2e1c3a-9d0b-4c6e-8a3f-1b2c3d4e5f60
status: experimental
level: high
description: Detects bursts of failed logins.
author: secops
date: 2025/11/02
tags:
  - attack.credential_access
  - attack.t1110
logsource:
  product: linux
  service: auth-service
detection:
  selection:
    event_type: login_failed
    outcome:
      - denied
      - locked
  filter:
    source_ip: 10.0.0.*
  condition: selection and not filter
  timeframe: 5m
`

func TestParse_ValidDocument(t *testing.T) {
	doc, errs := Parse([]byte(validRule))
	require.Empty(t, errs)
	require.NotNil(t, doc)

	assert.Equal(t, "Suspicious Login Burst", doc.Title)
	assert.Equal(t, "5f2e1c3a-9d0b-4c6e-8a3f-1b2c3d4e5f60", doc.ID)
	assert.Equal(t, StatusExperimental, doc.Status)
	assert.Equal(t, LevelHigh, doc.Level)
	assert.Equal(t, "linux", doc.Logsource.Product)
	assert.Equal(t, "auth-service", doc.Logsource.Service)
	assert.Equal(t, "selection and not filter", doc.Condition)
	assert.Equal(t, "5m", doc.Timeframe)
	assert.Equal(t, []string{"attack.credential_access", "attack.t1110"}, doc.Tags)
	assert.Equal(t, validRule, doc.Raw)

	require.Len(t, doc.Selections, 2)
	sel := doc.Selections["selection"]
	assert.Equal(t, SelectionFieldMap, sel.Kind)
	require.Len(t, sel.Fields, 2)
	byField := map[string][]string{}
	for _, fc := range sel.Fields {
		byField[fc.Field] = fc.Values
	}
	assert.Equal(t, []string{"login_failed"}, byField["event_type"])
	assert.Equal(t, []string{"denied", "locked"}, byField["outcome"])
}

func TestParse_KeywordSelection(t *testing.T) {
	doc, errs := Parse([]byte(`
title: Keyword Rule
logsource: {}
detection:
  keywords:
    - "panic:"
    - segfault
  condition: keywords
`))
	require.Empty(t, errs)
	sel := doc.Selections["keywords"]
	assert.Equal(t, SelectionKeywords, sel.Kind)
	assert.Equal(t, []string{"panic:", "segfault"}, sel.Keywords)
}

func TestParse_ScalarNormalization(t *testing.T) {
	doc, errs := Parse([]byte(`
title: Scalar Rule
logsource: {}
detection:
  selection:
    status: 500
    active: true
  condition: selection
`))
	require.Empty(t, errs)
	byField := map[string][]string{}
	for _, fc := range doc.Selections["selection"].Fields {
		byField[fc.Field] = fc.Values
	}
	assert.Equal(t, []string{"500"}, byField["status"])
	assert.Equal(t, []string{"true"}, byField["active"])
}

func TestParse_DefaultsApplied(t *testing.T) {
	doc, errs := Parse([]byte(`
title: Minimal Rule
logsource:
  service: api
detection:
  selection:
    event: x
  condition: selection
`))
	require.Empty(t, errs)
	assert.NotEmpty(t, doc.ID, "missing id must be generated")
	assert.Equal(t, LevelMedium, doc.Level)
	assert.Equal(t, StatusStable, doc.Status)
}

func TestParse_MalformedYAMLFailsClosed(t *testing.T) {
	doc, errs := Parse([]byte("title: [unclosed"))
	assert.Nil(t, doc)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "malformed")
}

func TestParse_EmptyDocument(t *testing.T) {
	doc, errs := Parse([]byte(""))
	assert.Nil(t, doc)
	require.Len(t, errs, 1)
}

func TestParse_AllErrorsCollected(t *testing.T) {
	// Missing title, invalid level, invalid status, missing logsource and
	// detection: every problem must be reported in one pass.
	doc, errs := Parse([]byte(`
status: bogus
level: severe
`))
	assert.Nil(t, doc)
	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	assert.True(t, fields["title"])
	assert.True(t, fields["status"])
	assert.True(t, fields["level"])
	assert.True(t, fields["logsource"])
	assert.True(t, fields["detection"])
}

func TestParse_MissingCondition(t *testing.T) {
	doc, errs := Parse([]byte(`
title: No Condition
logsource: {}
detection:
  selection:
    event: x
`))
	assert.Nil(t, doc)
	require.NotEmpty(t, errs)
	assert.Equal(t, "detection.condition", errs[0].Field)
}

func TestParse_NoSelections(t *testing.T) {
	doc, errs := Parse([]byte(`
title: Only Condition
logsource: {}
detection:
  condition: selection
`))
	assert.Nil(t, doc)
	assert.NotEmpty(t, errs)
}

func TestParse_BadSelectionShape(t *testing.T) {
	doc, errs := Parse([]byte(`
title: Bad Selection
logsource: {}
detection:
  selection: 42
  condition: selection
`))
	assert.Nil(t, doc)
	assert.NotEmpty(t, errs)
}

func TestParse_LogsourceMustBeMapping(t *testing.T) {
	doc, errs := Parse([]byte(`
title: Bad Logsource
logsource: linux
detection:
  selection:
    event: x
  condition: selection
`))
	assert.Nil(t, doc)
	assert.NotEmpty(t, errs)
}

func TestParse_UnknownLogsourceAttributesDropped(t *testing.T) {
	doc, errs := Parse([]byte(`
title: Extra Logsource Keys
logsource:
  service: api
  definition: some free text
detection:
  selection:
    event: x
  condition: selection
`))
	require.Empty(t, errs)
	assert.Equal(t, "api", doc.Logsource.Service)
}

func TestSerialize_RoundTrip(t *testing.T) {
	doc, errs := Parse([]byte(validRule))
	require.Empty(t, errs)

	out, err := Serialize(doc)
	require.NoError(t, err)

	again, errs := Parse(out)
	require.Empty(t, errs)

	assert.Equal(t, doc.ID, again.ID)
	assert.Equal(t, doc.Title, again.Title)
	assert.Equal(t, doc.Status, again.Status)
	assert.Equal(t, doc.Level, again.Level)
	assert.Equal(t, doc.Logsource, again.Logsource)
	assert.Equal(t, doc.Condition, again.Condition)
	assert.Equal(t, doc.Timeframe, again.Timeframe)
	assert.ElementsMatch(t, doc.Tags, again.Tags)
	require.Len(t, again.Selections, len(doc.Selections))
	assert.ElementsMatch(t, doc.Selections["filter"].Fields, again.Selections["filter"].Fields)
}

func TestSelectionNames(t *testing.T) {
	doc, errs := Parse([]byte(validRule))
	require.Empty(t, errs)
	assert.ElementsMatch(t, []string{"selection", "filter"}, doc.SelectionNames())
}
