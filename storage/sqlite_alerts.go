package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"logward/core"
)

const alertRuleColumns = `id, organization_id, project_id, name, enabled, service, levels,
	threshold, time_window_minutes, email_recipients, webhook_url, created_at, updated_at`

func scanAlertRule(rows *sql.Rows) (core.AlertRule, error) {
	var rule core.AlertRule
	var projectID sql.NullString
	var levels, recipients string
	err := rows.Scan(&rule.ID, &rule.OrganizationID, &projectID, &rule.Name, &rule.Enabled,
		&rule.Service, &levels, &rule.Threshold, &rule.TimeWindowMinutes,
		&recipients, &rule.WebhookURL, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return rule, err
	}
	if projectID.Valid {
		rule.ProjectID = &projectID.String
	}
	rule.Levels = splitList(levels)
	rule.EmailRecipients = splitList(recipients)
	return rule, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

// ListEnabledRules returns the enabled alert rules in scope. The scoping
// rules mirror detection rules: a project id pulls in organization-wide
// rules too.
func (s *SQLite) ListEnabledRules(ctx context.Context, orgID string, projectID *string) ([]core.AlertRule, error) {
	query := `SELECT ` + alertRuleColumns + ` FROM alert_rules
		WHERE organization_id = ? AND enabled = 1 AND project_id IS NULL`
	args := []interface{}{orgID}
	if projectID != nil {
		query = `SELECT ` + alertRuleColumns + ` FROM alert_rules
			WHERE organization_id = ? AND enabled = 1 AND (project_id IS NULL OR project_id = ?)`
		args = append(args, *projectID)
	}
	return s.queryAlertRules(ctx, query, args...)
}

// ListAllEnabledRules returns every enabled alert rule across all
// organizations. The scheduler's check cycle runs off this.
func (s *SQLite) ListAllEnabledRules(ctx context.Context) ([]core.AlertRule, error) {
	return s.queryAlertRules(ctx, `SELECT `+alertRuleColumns+` FROM alert_rules WHERE enabled = 1`)
}

func (s *SQLite) queryAlertRules(ctx context.Context, query string, args ...interface{}) ([]core.AlertRule, error) {
	rows, err := s.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert rules: %w", err)
	}
	defer rows.Close()

	var out []core.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateAlertRule(ctx context.Context, rule *core.AlertRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	_, err := s.WriteDB.ExecContext(ctx, `INSERT INTO alert_rules (`+alertRuleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.OrganizationID, rule.ProjectID, rule.Name, rule.Enabled,
		rule.Service, joinList(rule.Levels), rule.Threshold, rule.TimeWindowMinutes,
		joinList(rule.EmailRecipients), rule.WebhookURL, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create alert rule: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateAlertRule(ctx context.Context, rule *core.AlertRule) error {
	rule.UpdatedAt = time.Now().UTC()
	res, err := s.WriteDB.ExecContext(ctx, `UPDATE alert_rules SET
		name = ?, enabled = ?, service = ?, levels = ?, threshold = ?,
		time_window_minutes = ?, email_recipients = ?, webhook_url = ?, updated_at = ?
		WHERE id = ?`,
		rule.Name, rule.Enabled, rule.Service, joinList(rule.Levels), rule.Threshold,
		rule.TimeWindowMinutes, joinList(rule.EmailRecipients), rule.WebhookURL,
		rule.UpdatedAt, rule.ID)
	if err != nil {
		return fmt.Errorf("update alert rule %s: %w", rule.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alert rule %s: %w", rule.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("alert rule %s not found", rule.ID)
	}
	return nil
}

func (s *SQLite) DeleteAlertRule(ctx context.Context, id string) error {
	if _, err := s.WriteDB.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete alert rule %s: %w", id, err)
	}
	return nil
}

// InsertHistory appends a firing record and returns its id.
func (s *SQLite) InsertHistory(ctx context.Context, ruleID string, count int, triggeredAt time.Time) (string, error) {
	id := uuid.New().String()
	_, err := s.WriteDB.ExecContext(ctx, `INSERT INTO alert_history
		(id, rule_id, triggered_at, log_count, notified, error)
		VALUES (?, ?, ?, ?, 0, '')`,
		id, ruleID, triggeredAt.UTC(), count)
	if err != nil {
		return "", fmt.Errorf("insert alert history: %w", err)
	}
	return id, nil
}

// LastHistoryFor returns the most recent trigger time for a rule, or nil
// when the rule has never fired.
func (s *SQLite) LastHistoryFor(ctx context.Context, ruleID string) (*time.Time, error) {
	var triggeredAt time.Time
	err := s.ReadDB.QueryRowContext(ctx,
		`SELECT triggered_at FROM alert_history WHERE rule_id = ? ORDER BY triggered_at DESC LIMIT 1`,
		ruleID).Scan(&triggeredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last firing: %w", err)
	}
	triggeredAt = triggeredAt.UTC()
	return &triggeredAt, nil
}

// UpdateHistoryNotified records the notification outcome on a history row.
func (s *SQLite) UpdateHistoryNotified(ctx context.Context, historyID string, notified bool, errMsg string) error {
	res, err := s.WriteDB.ExecContext(ctx,
		`UPDATE alert_history SET notified = ?, error = ? WHERE id = ?`,
		notified, errMsg, historyID)
	if err != nil {
		return fmt.Errorf("update alert history %s: %w", historyID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alert history %s: %w", historyID, err)
	}
	if n == 0 {
		return fmt.Errorf("alert history %s not found", historyID)
	}
	return nil
}

// ListHistory returns the most recent firings for a rule, newest first.
func (s *SQLite) ListHistory(ctx context.Context, ruleID string, limit int) ([]core.AlertHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.ReadDB.QueryContext(ctx,
		`SELECT id, rule_id, triggered_at, log_count, notified, error FROM alert_history
		WHERE rule_id = ? ORDER BY triggered_at DESC LIMIT ?`, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	var out []core.AlertHistory
	for rows.Next() {
		var h core.AlertHistory
		if err := rows.Scan(&h.ID, &h.RuleID, &h.TriggeredAt, &h.LogCount, &h.Notified, &h.Error); err != nil {
			return nil, fmt.Errorf("scan alert history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLite) ListProjectIDs(ctx context.Context, orgID string) ([]string, error) {
	rows, err := s.ReadDB.QueryContext(ctx,
		`SELECT id FROM projects WHERE organization_id = ?`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) CreateProject(ctx context.Context, project *core.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	_, err := s.WriteDB.ExecContext(ctx, `INSERT INTO projects (id, organization_id, name, created_at)
		VALUES (?, ?, ?, ?)`,
		project.ID, project.OrganizationID, project.Name, project.CreatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}
