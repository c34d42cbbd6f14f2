package storage

import (
	"context"
	"fmt"
	"time"

	"logward/rules"
)

// ListActiveDetectionRules returns the enabled detection rules in scope.
// With a project id, organization-wide rules (null project) are included
// alongside the project's own; with a nil project id only organization-wide
// rules are returned.
func (s *SQLite) ListActiveDetectionRules(ctx context.Context, orgID string, projectID *string) ([]*rules.RuleDocument, error) {
	query := `SELECT id, yaml_content FROM detection_rules
		WHERE organization_id = ? AND enabled = 1 AND project_id IS NULL`
	args := []interface{}{orgID}
	if projectID != nil {
		query = `SELECT id, yaml_content FROM detection_rules
			WHERE organization_id = ? AND enabled = 1 AND (project_id IS NULL OR project_id = ?)`
		args = append(args, *projectID)
	}

	rows, err := s.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query detection rules: %w", err)
	}
	defer rows.Close()

	var docs []*rules.RuleDocument
	for rows.Next() {
		var id, yamlContent string
		if err := rows.Scan(&id, &yamlContent); err != nil {
			return nil, fmt.Errorf("scan detection rule: %w", err)
		}
		doc, verrs := rules.Parse([]byte(yamlContent))
		if len(verrs) > 0 {
			// A rule that validated on save but no longer parses is logged
			// and skipped so one bad row cannot take down evaluation.
			s.Logger.Warnw("stored detection rule no longer parses", "rule_id", id, "errors", verrs)
			continue
		}
		doc.ID = id
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SaveDetectionRule upserts a rule document, persisting its normalized YAML.
func (s *SQLite) SaveDetectionRule(ctx context.Context, orgID string, projectID *string, doc *rules.RuleDocument, enabled bool) error {
	yamlContent := doc.Raw
	if yamlContent == "" {
		serialized, err := rules.Serialize(doc)
		if err != nil {
			return fmt.Errorf("serialize rule %s: %w", doc.ID, err)
		}
		yamlContent = string(serialized)
	}

	now := time.Now().UTC()
	_, err := s.WriteDB.ExecContext(ctx, `INSERT INTO detection_rules
		(id, organization_id, project_id, title, status, level, enabled, yaml_content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			level = excluded.level,
			enabled = excluded.enabled,
			yaml_content = excluded.yaml_content,
			updated_at = excluded.updated_at`,
		doc.ID, orgID, projectID, doc.Title, doc.Status, doc.Level, enabled, yamlContent, now, now)
	if err != nil {
		return fmt.Errorf("save detection rule %s: %w", doc.ID, err)
	}
	return nil
}

// DeleteDetectionRule removes a rule by id. Deleting an absent rule is not
// an error.
func (s *SQLite) DeleteDetectionRule(ctx context.Context, id string) error {
	if _, err := s.WriteDB.ExecContext(ctx, `DELETE FROM detection_rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete detection rule %s: %w", id, err)
	}
	return nil
}
