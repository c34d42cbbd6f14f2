// Package alerting implements threshold alert evaluation and the periodic
// scheduler that drives it.
package alerting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"logward/core"
	"logward/metrics"
	"logward/storage"
)

// Evaluator decides whether a single alert rule fires. The clock is
// injectable so window arithmetic is testable.
type Evaluator struct {
	logs     storage.LogStore
	history  storage.HistoryStore
	projects storage.ProjectStore
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewEvaluator(logs storage.LogStore, history storage.HistoryStore, projects storage.ProjectStore, logger *zap.SugaredLogger) *Evaluator {
	return &Evaluator{
		logs:     logs,
		history:  history,
		projects: projects,
		logger:   logger,
		now:      time.Now,
	}
}

// CheckRule counts qualifying logs for the rule's window and fires when the
// count meets the threshold. The count never reaches back past the rule's
// most recent firing, so one burst of logs produces at most one alert per
// window.
//
// A nil Firing with a nil error means the rule did not fire this check.
func (ev *Evaluator) CheckRule(ctx context.Context, rule core.AlertRule) (*core.Firing, error) {
	now := ev.now().UTC()
	countFrom := now.Add(-rule.Window())

	lastTrigger, err := ev.history.LastHistoryFor(ctx, rule.ID)
	if err != nil {
		return nil, fmt.Errorf("last firing for rule %s: %w", rule.ID, err)
	}
	if lastTrigger != nil && lastTrigger.After(countFrom) {
		countFrom = *lastTrigger
	}

	projectIDs, err := ev.scopeProjects(ctx, rule)
	if err != nil {
		return nil, err
	}
	if len(projectIDs) == 0 {
		// Organization has no projects yet; nothing can match.
		return nil, nil
	}

	count, err := ev.logs.CountLogs(ctx, storage.LogCountFilter{
		After:      countFrom,
		Levels:     rule.Levels,
		Service:    rule.Service,
		ProjectIDs: projectIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("count logs for rule %s: %w", rule.ID, err)
	}

	if count < rule.Threshold {
		return nil, nil
	}

	historyID, err := ev.history.InsertHistory(ctx, rule.ID, count, now)
	if err != nil {
		return nil, fmt.Errorf("record firing for rule %s: %w", rule.ID, err)
	}
	metrics.AlertFirings.WithLabelValues(rule.ID).Inc()
	ev.logger.Infow("alert rule fired",
		"rule_id", rule.ID, "rule_name", rule.Name, "count", count, "threshold", rule.Threshold)

	return &core.Firing{
		Rule:        rule,
		HistoryID:   historyID,
		LogCount:    count,
		TriggeredAt: now,
	}, nil
}

// scopeProjects resolves the project ids a rule's count query spans: the
// rule's own project when set, otherwise every project in the organization.
func (ev *Evaluator) scopeProjects(ctx context.Context, rule core.AlertRule) ([]string, error) {
	if rule.ProjectID != nil {
		return []string{*rule.ProjectID}, nil
	}
	ids, err := ev.projects.ListProjectIDs(ctx, rule.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list projects for org %s: %w", rule.OrganizationID, err)
	}
	return ids, nil
}
