package core

import "time"

// MatchedRule records one detection rule matching one log entry.
// Instances are immutable once created; ownership passes to the caller
// that persists or forwards them.
type MatchedRule struct {
	RuleID     string    `json:"rule_id"`
	Title      string    `json:"title"`
	Level      string    `json:"level"`
	Tags       []string  `json:"tags,omitempty"`
	Tactics    []string  `json:"tactics,omitempty"`
	Techniques []string  `json:"techniques,omitempty"`
	MatchedAt  time.Time `json:"matched_at"`
}

// DetectionResult is the outcome of evaluating one log entry against the
// active rule set. A single log may trigger zero, one, or many rules.
type DetectionResult struct {
	LogID   string        `json:"log_id"`
	Matched bool          `json:"matched"`
	Matches []MatchedRule `json:"matches,omitempty"`
}
