package core

import "time"

// AlertRule is a count-based threshold rule evaluated on every scheduler
// tick. A nil ProjectID means the rule is organization-wide: it counts logs
// across every project under its organization, never across organizations.
type AlertRule struct {
	ID                string    `json:"id"`
	OrganizationID    string    `json:"organization_id"`
	ProjectID         *string   `json:"project_id,omitempty"`
	Name              string    `json:"name"`
	Enabled           bool      `json:"enabled"`
	Service           string    `json:"service,omitempty"`
	Levels            []string  `json:"levels"`
	Threshold         int       `json:"threshold"`
	TimeWindowMinutes int       `json:"time_window_minutes"`
	EmailRecipients   []string  `json:"email_recipients,omitempty"`
	WebhookURL        string    `json:"webhook_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Window returns the rule's rolling time window as a duration.
func (r *AlertRule) Window() time.Duration {
	return time.Duration(r.TimeWindowMinutes) * time.Minute
}

// AlertHistory is one firing of an alert rule. Rows are append-only; the
// most recent row per rule anchors threshold deduplication. Notified and
// Error are set exactly once, asynchronously, by the notification boundary.
type AlertHistory struct {
	ID          string    `json:"id"`
	RuleID      string    `json:"rule_id"`
	TriggeredAt time.Time `json:"triggered_at"`
	LogCount    int       `json:"log_count"`
	Notified    bool      `json:"notified"`
	Error       string    `json:"error,omitempty"`
}

// Firing describes one threshold breach: the rule that fired, the durable
// history row created for it, and the observed count.
type Firing struct {
	Rule        AlertRule
	HistoryID   string
	LogCount    int
	TriggeredAt time.Time
}

// NotificationJob is the payload enqueued for the notification worker.
// Delivery is at-least-once; consumers must tolerate duplicates. HistoryID
// lets the worker record delivery outcome on the originating history row.
type NotificationJob struct {
	RuleID            string   `json:"rule_id"`
	RuleName          string   `json:"rule_name"`
	OrganizationID    string   `json:"organization_id"`
	ProjectID         *string  `json:"project_id,omitempty"`
	HistoryID         string   `json:"history_id"`
	LogCount          int      `json:"log_count"`
	Threshold         int      `json:"threshold"`
	TimeWindowMinutes int      `json:"time_window_minutes"`
	EmailRecipients   []string `json:"email_recipients,omitempty"`
	WebhookURL        string   `json:"webhook_url,omitempty"`
}

// Project scopes logs and rules below an organization.
type Project struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}
