package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAttackTags(t *testing.T) {
	cases := []struct {
		name       string
		tags       []string
		tactics    []string
		techniques []string
	}{
		{
			name:       "technique normalized to canonical form",
			tags:       []string{"attack.t1110"},
			techniques: []string{"T1110"},
		},
		{
			name:       "sub-technique keeps dotted suffix",
			tags:       []string{"attack.t1078.004"},
			techniques: []string{"T1078.004"},
		},
		{
			name:    "tactic passes through",
			tags:    []string{"attack.credential_access"},
			tactics: []string{"credential_access"},
		},
		{
			name:       "mixed tags split by kind",
			tags:       []string{"attack.initial_access", "attack.t1190", "attack.persistence"},
			tactics:    []string{"initial_access", "persistence"},
			techniques: []string{"T1190"},
		},
		{
			name: "non-attack tags ignored",
			tags: []string{"cve.2021.44228", "detection.threat_hunting"},
		},
		{
			name:    "tactic starting with t but not a technique",
			tags:    []string{"attack.test_tactic"},
			tactics: []string{"test_tactic"},
		},
		{
			name:    "short t-number is a tactic",
			tags:    []string{"attack.t12"},
			tactics: []string{"t12"},
		},
		{
			name: "empty suffix ignored",
			tags: []string{"attack."},
		},
		{
			name: "no tags",
			tags: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tactics, techniques := ExtractAttackTags(tc.tags)
			assert.Equal(t, tc.tactics, tactics)
			assert.Equal(t, tc.techniques, techniques)
		})
	}
}
