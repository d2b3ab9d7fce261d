package models

// VersionResponse is the API root response carrying the server version.
type VersionResponse struct {
	Version string `json:"version"`
}

// User is the subset of a Graylog user record needed for scope checks.
type User struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// Event is a single Graylog event as it appears both in search results
// and in pushed webhook payloads.
type Event struct {
	ID                string `json:"id"`
	EventDefinitionID string `json:"event_definition_id"`
	OriginContext     string `json:"origin_context,omitempty"`
	Message           string `json:"message"`
	Priority          int    `json:"priority"`
	Timestamp         string `json:"timestamp"`
}

// EventPayload wraps an Event together with the definition metadata
// Graylog attaches when delivering notifications.
type EventPayload struct {
	Event                      Event  `json:"event"`
	EventDefinitionTitle       string `json:"event_definition_title,omitempty"`
	EventDefinitionDescription string `json:"event_definition_description,omitempty"`
}

// AlertFilter restricts an event search to alerting events.
type AlertFilter struct {
	Alerts string `json:"alerts"`
}

// Timerange is a Graylog relative/absolute time range.
type Timerange struct {
	Range int    `json:"range"`
	Type  string `json:"type"`
}

// AlertSearchRequest is the body for POST /events/search.
type AlertSearchRequest struct {
	Query     string      `json:"query"`
	Page      int         `json:"page"`
	PerPage   int         `json:"per_page"`
	Filter    AlertFilter `json:"filter"`
	Timerange Timerange   `json:"timerange"`
}

// AlertSearchResponse is one page of event search results.
type AlertSearchResponse struct {
	Events      []EventPayload `json:"events"`
	TotalEvents int            `json:"total_events"`
}

// Notification is a Graylog event notification (an outbound channel).
// Config is version-specific: HTTPNotificationV1 on v4 backends,
// HTTPNotificationV2 on v5 and later.
type Notification struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Config      any    `json:"config,omitempty"`
}

// NotificationPage is the response of a notification title query.
type NotificationPage struct {
	Count         int            `json:"count"`
	Notifications []Notification `json:"notifications"`
}

// HTTPNotificationV1 is the legacy (v4) HTTP notification config.
type HTTPNotificationV1 struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// HTTPNotificationV2 is the HTTP notification config for Graylog v5+.
type HTTPNotificationV2 struct {
	Type                string  `json:"type"`
	BasicAuth           *string `json:"basic_auth"`
	APIKeyAsHeader      bool    `json:"api_key_as_header"`
	APIKey              string  `json:"api_key"`
	APISecret           *string `json:"api_secret"`
	URL                 string  `json:"url"`
	SkipTLSVerification bool    `json:"skip_tls_verification"`
	Method              string  `json:"method"`
	TimeZone            string  `json:"time_zone"`
	ContentType         string  `json:"content_type"`
	Headers             string  `json:"headers"`
	BodyTemplate        string  `json:"body_template"`
}

// WhitelistEntry is one entry of the Graylog URL whitelist.
type WhitelistEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Whitelist is the whole URL whitelist. Updates replace the entire
// collection; there is no single-entry upsert in the Graylog API.
type Whitelist struct {
	Entries  []WhitelistEntry `json:"entries"`
	Disabled bool             `json:"disabled"`
}

// EventDefinition is a Graylog event definition. It is kept as a raw
// object because updates are full-object replaces and the adapter must
// round-trip every field it does not understand.
type EventDefinition map[string]any

// ID returns the definition id, or "" when absent.
func (d EventDefinition) ID() string {
	id, _ := d["id"].(string)
	return id
}

// Scope returns the definition's _scope field, or "" when absent.
func (d EventDefinition) Scope() string {
	scope, _ := d["_scope"].(string)
	return scope
}

// notificationRefs returns the definition's notification reference list.
func (d EventDefinition) notificationRefs() []any {
	refs, _ := d["notifications"].([]any)
	return refs
}

// HasNotification reports whether the definition references the given
// notification id.
func (d EventDefinition) HasNotification(notificationID string) bool {
	for _, ref := range d.notificationRefs() {
		m, ok := ref.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := m["notification_id"].(string); id == notificationID {
			return true
		}
	}
	return false
}

// RemoveNotification drops the first reference to the given notification
// id and reports whether anything was removed.
func (d EventDefinition) RemoveNotification(notificationID string) bool {
	refs := d.notificationRefs()
	for i, ref := range refs {
		m, ok := ref.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := m["notification_id"].(string); id == notificationID {
			d["notifications"] = append(refs[:i:i], refs[i+1:]...)
			return true
		}
	}
	return false
}

// AddNotification appends a reference to the given notification id.
func (d EventDefinition) AddNotification(notificationID string) {
	d["notifications"] = append(d.notificationRefs(), map[string]any{
		"notification_id": notificationID,
	})
}

// EventDefinitionsPage is one page of GET /events/definitions.
type EventDefinitionsPage struct {
	EventDefinitions []EventDefinition `json:"event_definitions"`
	Total            int               `json:"total"`
}

// SyncSearchResponse is the response of POST /views/search/sync. Results
// are keyed by query id, search types by search type id.
type SyncSearchResponse struct {
	Results map[string]SyncSearchResult `json:"results"`
}

// SyncSearchResult holds the per-query search type results.
type SyncSearchResult struct {
	SearchTypes map[string]SearchTypeResult `json:"search_types"`
}

// SearchTypeResult carries the raw messages of a messages-type search.
type SearchTypeResult struct {
	Messages []map[string]any `json:"messages"`
}
