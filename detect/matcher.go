package detect

import (
	"fmt"
	"regexp"
	"strings"

	"logward/core"
	"logward/rules"

	lru "github.com/hashicorp/golang-lru/v2"
)

// patternCache memoizes compiled wildcard patterns across rules and
// evaluations. Rule corpora reuse a small set of patterns heavily, so a
// bounded LRU keeps the hot set compiled without growing with input.
var patternCache, _ = lru.New[string, *regexp.Regexp](1024)

// compileWildcard translates a wildcard pattern into an anchored regular
// expression: the pattern is escaped, each "*" becomes ".*", and matching
// is case-insensitive unless caseSensitive is set.
func compileWildcard(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	key := pattern
	if caseSensitive {
		key = "\x00cs\x00" + pattern
	}
	if re, ok := patternCache.Get(key); ok {
		return re, nil
	}

	var b strings.Builder
	if !caseSensitive {
		b.WriteString("(?i)")
	}
	b.WriteString("^")
	for i, segment := range strings.Split(pattern, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(segment))
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid wildcard pattern %q: %w", pattern, err)
	}
	patternCache.Add(key, re)
	return re, nil
}

// valueMatches tests one candidate value against a field value. Candidates
// without wildcards compare as plain equality (case-folded unless
// caseSensitive); candidates containing "*" match as anchored wildcards.
func valueMatches(candidate, value string, caseSensitive bool) bool {
	if !strings.Contains(candidate, "*") {
		if caseSensitive {
			return candidate == value
		}
		return strings.EqualFold(candidate, value)
	}
	re, err := compileWildcard(candidate, caseSensitive)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

// MatchSelection evaluates one selection block against a flattened record.
//
// Keyword selections match when any keyword is a substring of any
// string-valued field. Field-map selections require every field constraint
// to hold (AND across fields) with any candidate value satisfying a
// constraint (OR within a field). A field missing from the record fails its
// constraint; there is no implicit null-match.
func MatchSelection(record core.FlattenedRecord, sel rules.Selection, caseSensitive bool) bool {
	if sel.Kind == rules.SelectionKeywords {
		return matchKeywords(record, sel.Keywords, caseSensitive)
	}

	for _, fc := range sel.Fields {
		raw, ok := record[fc.Field]
		if !ok {
			return false
		}
		value := stringifyFieldValue(raw)

		matched := false
		for _, candidate := range fc.Values {
			if valueMatches(candidate, value, caseSensitive) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// matchKeywords reports whether any keyword is a substring of any
// string-valued field in the record.
func matchKeywords(record core.FlattenedRecord, keywords []string, caseSensitive bool) bool {
	for _, raw := range record {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		haystack := s
		if !caseSensitive {
			haystack = strings.ToLower(s)
		}
		for _, kw := range keywords {
			needle := kw
			if !caseSensitive {
				needle = strings.ToLower(kw)
			}
			if strings.Contains(haystack, needle) {
				return true
			}
		}
	}
	return false
}

// stringifyFieldValue renders a record value for comparison against the
// rule's normalized string candidates.
func stringifyFieldValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
