package detect

import (
	"logward/core"
	"logward/rules"
)

// MatchLogsource tests whether a log entry is eligible for a rule. Each
// specified logsource dimension must match (AND); an absent dimension on the
// rule side matches everything.
//
// A log-side value of the literal "unknown" unconditionally satisfies that
// one dimension: logs that arrived without classification metadata must not
// be excluded from any rule. A log that carries no value at all for a
// dimension is treated the same way.
func MatchLogsource(ls rules.Logsource, entry *core.LogEntry) bool {
	if !logsourceDimensionMatches(ls.Service, entry.Service) {
		return false
	}
	if !logsourceDimensionMatches(ls.Product, metadataString(entry, "product")) {
		return false
	}
	if !logsourceDimensionMatches(ls.Category, metadataString(entry, "category")) {
		return false
	}
	return true
}

func logsourceDimensionMatches(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	if value == "" || value == core.UnknownValue {
		return true
	}
	return valueMatches(pattern, value, false)
}

func metadataString(entry *core.LogEntry, key string) string {
	if entry.Metadata == nil {
		return ""
	}
	if v, ok := entry.Metadata[key].(string); ok {
		return v
	}
	return ""
}
