// Package storage defines the persistence boundary of the engine: SQLite
// for rule and alert metadata, ClickHouse for the log store. In-memory
// implementations for tests live in mocks.go.
package storage

import (
	"context"
	"time"

	"logward/core"
	"logward/rules"
)

// DetectionRuleStore provides the detection rule read/write contract.
// Project-scoped listing includes organization-wide rules (nil project id).
type DetectionRuleStore interface {
	ListActiveDetectionRules(ctx context.Context, orgID string, projectID *string) ([]*rules.RuleDocument, error)
	SaveDetectionRule(ctx context.Context, orgID string, projectID *string, doc *rules.RuleDocument, enabled bool) error
	DeleteDetectionRule(ctx context.Context, id string) error
}

// AlertRuleStore provides alert threshold rule reads for the scheduler and
// evaluator, plus the writes needed to manage them.
type AlertRuleStore interface {
	ListEnabledRules(ctx context.Context, orgID string, projectID *string) ([]core.AlertRule, error)
	ListAllEnabledRules(ctx context.Context) ([]core.AlertRule, error)
	CreateAlertRule(ctx context.Context, rule *core.AlertRule) error
	UpdateAlertRule(ctx context.Context, rule *core.AlertRule) error
	DeleteAlertRule(ctx context.Context, id string) error
}

// HistoryStore provides append-only alert firing history. The most recent
// row per rule anchors threshold deduplication; UpdateHistoryNotified is
// the notification boundary's single permitted mutation.
type HistoryStore interface {
	InsertHistory(ctx context.Context, ruleID string, count int, triggeredAt time.Time) (string, error)
	LastHistoryFor(ctx context.Context, ruleID string) (*time.Time, error)
	UpdateHistoryNotified(ctx context.Context, historyID string, notified bool, errMsg string) error
	ListHistory(ctx context.Context, ruleID string, limit int) ([]core.AlertHistory, error)
}

// ProjectStore resolves the project scope of organization-wide alert rules.
type ProjectStore interface {
	ListProjectIDs(ctx context.Context, orgID string) ([]string, error)
	CreateProject(ctx context.Context, project *core.Project) error
}

// LogCountFilter parameterizes the windowed log count query. After is
// exclusive: only logs strictly newer qualify. An empty Service means no
// service filter; logs whose service is the literal "unknown" always pass
// the filter. ProjectIDs must never be empty for a count, since an unscoped
// count would cross organization boundaries.
type LogCountFilter struct {
	After      time.Time
	Levels     []string
	Service    string
	ProjectIDs []string
}

// LogStore is the log persistence and count-query contract.
type LogStore interface {
	InsertLogs(ctx context.Context, entries []*core.LogEntry) error
	CountLogs(ctx context.Context, filter LogCountFilter) (int, error)
}
