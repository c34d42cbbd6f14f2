package core

import "time"

// LogEntry is a single log record as handed to the engine by the ingestion
// pipeline. The engine never parses wire formats; entries arrive already
// authenticated and decoded.
type LogEntry struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	ProjectID      string                 `json:"project_id"`
	Time           time.Time              `json:"time"`
	Service        string                 `json:"service"`
	Level          string                 `json:"level"`
	Message        string                 `json:"message"`
	TraceID        string                 `json:"trace_id,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// FlattenedRecord maps dotted field paths to scalar values. It is derived
// from a LogEntry by recursively flattening nested metadata; see
// detect.Flatten for the derivation rules.
type FlattenedRecord map[string]interface{}
