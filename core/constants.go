package core

// Log severity levels, ordered from least to most severe.
const (
	LevelDebug    = "debug"
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// UnknownValue is the literal value a log carries when its classification
// metadata (service, product, category) could not be determined at ingest
// time. Logs with this value bypass logsource filtering and alert-rule
// service filters so that unclassified logs are never silently excluded.
const UnknownValue = "unknown"

// severityRank orders log levels for threshold comparisons.
var severityRank = map[string]int{
	LevelDebug:    1,
	LevelInfo:     2,
	LevelWarning:  3,
	LevelError:    4,
	LevelCritical: 5,
}

// SeverityRank returns the numeric rank of a log level.
// Unrecognized levels rank lowest.
func SeverityRank(level string) int {
	if r, ok := severityRank[level]; ok {
		return r
	}
	return 0
}

// ValidLogLevel reports whether level is one of the known log severities.
func ValidLogLevel(level string) bool {
	_, ok := severityRank[level]
	return ok
}
