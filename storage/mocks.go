package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"logward/core"
	"logward/rules"
)

// MockRuleStore is an in-memory DetectionRuleStore for tests.
type MockRuleStore struct {
	mu   sync.Mutex
	docs []*rules.RuleDocument

	ListErr   error
	ListCalls int
}

func NewMockRuleStore(docs ...*rules.RuleDocument) *MockRuleStore {
	return &MockRuleStore{docs: docs}
}

func (m *MockRuleStore) ListActiveDetectionRules(_ context.Context, _ string, _ *string) ([]*rules.RuleDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]*rules.RuleDocument, len(m.docs))
	copy(out, m.docs)
	return out, nil
}

func (m *MockRuleStore) SaveDetectionRule(_ context.Context, _ string, _ *string, doc *rules.RuleDocument, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.docs {
		if existing.ID == doc.ID {
			m.docs[i] = doc
			return nil
		}
	}
	m.docs = append(m.docs, doc)
	return nil
}

func (m *MockRuleStore) DeleteDetectionRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, doc := range m.docs {
		if doc.ID == id {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return nil
		}
	}
	return nil
}

// MockAlertRuleStore is an in-memory AlertRuleStore for tests.
type MockAlertRuleStore struct {
	mu    sync.Mutex
	rules []core.AlertRule

	ListErr error
}

func NewMockAlertRuleStore(rs ...core.AlertRule) *MockAlertRuleStore {
	return &MockAlertRuleStore{rules: rs}
}

func (m *MockAlertRuleStore) ListEnabledRules(_ context.Context, orgID string, projectID *string) ([]core.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []core.AlertRule
	for _, r := range m.rules {
		if !r.Enabled || r.OrganizationID != orgID {
			continue
		}
		if r.ProjectID == nil || (projectID != nil && *r.ProjectID == *projectID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockAlertRuleStore) ListAllEnabledRules(_ context.Context) ([]core.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []core.AlertRule
	for _, r := range m.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockAlertRuleStore) CreateAlertRule(_ context.Context, rule *core.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	m.rules = append(m.rules, *rule)
	return nil
}

func (m *MockAlertRuleStore) UpdateAlertRule(_ context.Context, rule *core.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == rule.ID {
			m.rules[i] = *rule
			return nil
		}
	}
	return fmt.Errorf("alert rule %s not found", rule.ID)
}

func (m *MockAlertRuleStore) DeleteAlertRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return nil
}

// MockHistoryStore is an in-memory HistoryStore for tests.
type MockHistoryStore struct {
	mu      sync.Mutex
	entries []core.AlertHistory

	InsertErr error
	UpdateErr error
}

func NewMockHistoryStore() *MockHistoryStore {
	return &MockHistoryStore{}
}

func (m *MockHistoryStore) InsertHistory(_ context.Context, ruleID string, count int, triggeredAt time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return "", m.InsertErr
	}
	id := uuid.New().String()
	m.entries = append(m.entries, core.AlertHistory{
		ID:          id,
		RuleID:      ruleID,
		TriggeredAt: triggeredAt.UTC(),
		LogCount:    count,
	})
	return id, nil
}

func (m *MockHistoryStore) LastHistoryFor(_ context.Context, ruleID string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *time.Time
	for i := range m.entries {
		e := m.entries[i]
		if e.RuleID != ruleID {
			continue
		}
		if last == nil || e.TriggeredAt.After(*last) {
			t := e.TriggeredAt
			last = &t
		}
	}
	return last, nil
}

func (m *MockHistoryStore) UpdateHistoryNotified(_ context.Context, historyID string, notified bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	for i := range m.entries {
		if m.entries[i].ID == historyID {
			m.entries[i].Notified = notified
			m.entries[i].Error = errMsg
			return nil
		}
	}
	return fmt.Errorf("alert history %s not found", historyID)
}

func (m *MockHistoryStore) ListHistory(_ context.Context, ruleID string, limit int) ([]core.AlertHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.AlertHistory
	for _, e := range m.entries {
		if e.RuleID == ruleID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Entries returns a copy of everything recorded so far.
func (m *MockHistoryStore) Entries() []core.AlertHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.AlertHistory, len(m.entries))
	copy(out, m.entries)
	return out
}

// MockProjectStore is an in-memory ProjectStore for tests.
type MockProjectStore struct {
	mu       sync.Mutex
	projects []core.Project

	ListErr error
}

func NewMockProjectStore(projects ...core.Project) *MockProjectStore {
	return &MockProjectStore{projects: projects}
}

func (m *MockProjectStore) ListProjectIDs(_ context.Context, orgID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var ids []string
	for _, p := range m.projects {
		if p.OrganizationID == orgID {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (m *MockProjectStore) CreateProject(_ context.Context, project *core.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	m.projects = append(m.projects, *project)
	return nil
}

// MockLogStore is an in-memory LogStore for tests. CountLogs applies the
// same filter semantics as the ClickHouse implementation, including the
// "unknown" service bypass and the exclusive After bound.
type MockLogStore struct {
	mu      sync.Mutex
	entries []*core.LogEntry

	CountErr error
}

func NewMockLogStore() *MockLogStore {
	return &MockLogStore{}
}

func (m *MockLogStore) InsertLogs(_ context.Context, entries []*core.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *MockLogStore) CountLogs(_ context.Context, filter LogCountFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	if len(filter.ProjectIDs) == 0 {
		return 0, fmt.Errorf("count requires at least one project id")
	}
	projects := make(map[string]bool, len(filter.ProjectIDs))
	for _, id := range filter.ProjectIDs {
		projects[id] = true
	}
	levels := make(map[string]bool, len(filter.Levels))
	for _, l := range filter.Levels {
		levels[l] = true
	}

	count := 0
	for _, e := range m.entries {
		if !e.Time.After(filter.After) {
			continue
		}
		if !projects[e.ProjectID] {
			continue
		}
		if len(levels) > 0 && !levels[e.Level] {
			continue
		}
		if filter.Service != "" && e.Service != filter.Service && e.Service != core.UnknownValue {
			continue
		}
		count++
	}
	return count, nil
}
