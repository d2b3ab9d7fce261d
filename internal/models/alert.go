// Package models defines the canonical alert representation and the
// Graylog API wire types used by the adapter.
package models

// Severity is the normalized alert severity.
type Severity string

// Severities mapped from Graylog event priorities (1..3).
const (
	SeverityLow     Severity = "low"
	SeverityWarning Severity = "warning"
	SeverityHigh    Severity = "high"
)

// Status is the normalized alert status. Graylog only pushes firing
// events; it never resends or resolves them.
type Status string

// StatusFiring is the only status produced by this adapter.
const StatusFiring Status = "firing"

// CanonicalAlert is the backend-independent alert representation.
// Fingerprint identifies the alert instance for deduplication.
type CanonicalAlert struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Severity          Severity `json:"severity"`
	Description       string   `json:"description,omitempty"`
	EventDefinitionID string   `json:"event_definition_id"`
	OriginContext     string   `json:"origin_context,omitempty"`
	Status            Status   `json:"status"`
	LastReceived      string   `json:"lastReceived"`
	Message           string   `json:"message,omitempty"`
	Source            []string `json:"source"`
	Fingerprint       string   `json:"fingerprint"`
}
