package graylog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/alertbridge/graylog2alert-agent/internal/models"
)

// sourceName is the canonical alert source identifier.
const sourceName = "graylog"

// Fingerprint computes the deterministic deduplication identity from the
// fingerprint field values. The default field set is the event's own id:
// Graylog does not resend identical alerts, and the event definition id
// identifies the rule, not the instance, so keying on it would collapse
// all alerts from one rule across time.
func Fingerprint(values ...string) string {
	h := sha256.New()
	for _, v := range values {
		h.Write([]byte(v))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MapEvent converts a raw Graylog event payload into a CanonicalAlert.
// Pure function; it fails on an out-of-range priority or an unparsable
// timestamp and never substitutes defaults for either.
func MapEvent(payload models.EventPayload) (models.CanonicalAlert, error) {
	event := payload.Event

	severity, err := severityFromPriority(event.Priority)
	if err != nil {
		return models.CanonicalAlert{}, err
	}

	lastReceived, err := normalizeTimestamp(event.Timestamp)
	if err != nil {
		return models.CanonicalAlert{}, fmt.Errorf("parsing event timestamp %q: %w", event.Timestamp, err)
	}

	name := payload.EventDefinitionTitle
	if name == "" {
		name = event.Message
	}

	alert := models.CanonicalAlert{
		ID:                event.ID,
		Name:              name,
		Severity:          severity,
		Description:       payload.EventDefinitionDescription,
		EventDefinitionID: event.EventDefinitionID,
		OriginContext:     event.OriginContext,
		Status:            models.StatusFiring,
		LastReceived:      lastReceived,
		Message:           event.Message,
		Source:            []string{sourceName},
	}
	alert.Fingerprint = Fingerprint(alert.ID)

	return alert, nil
}

// severityFromPriority maps Graylog event priorities 1..3 to canonical
// severities. Anything else is an error.
func severityFromPriority(priority int) (models.Severity, error) {
	switch priority {
	case 1:
		return models.SeverityLow, nil
	case 2:
		return models.SeverityWarning, nil
	case 3:
		return models.SeverityHigh, nil
	}
	return "", fmt.Errorf("event priority %d out of range 1..3", priority)
}

// normalizeTimestamp parses a Graylog event timestamp and reformats it
// as RFC 3339 UTC. Accepts any valid offset notation as well as the
// offset-less form Graylog emits, which is taken to be UTC.
func normalizeTimestamp(ts string) (string, error) {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.UTC().Format(time.RFC3339Nano), nil
	}

	// Offset-less, with an optional lowercase zone marker some Graylog
	// versions produce.
	t, err := time.Parse("2006-01-02T15:04:05.999999999", strings.TrimSuffix(ts, "z"))
	if err != nil {
		return "", err
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}
