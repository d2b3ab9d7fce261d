package graylog

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/google/uuid"

	"github.com/alertbridge/graylog2alert-agent/internal/models"
)

const (
	alertPageSize = 1000

	// minAlertPages is the floor on the number of event-search pages
	// fetched regardless of the total the first page reports. The
	// reported total_events has been observed to undercount, so extra
	// empty-result pages are fetched rather than trusting it.
	minAlertPages = 10

	// alertTimerangeSeconds is the relative lookback window for alert
	// ingestion.
	alertTimerangeSeconds = 24 * 60 * 60
)

// Search path defaults.
const (
	defaultQueryType        = "elastic"
	defaultTimerangeSeconds = 300
	defaultTimerangeType    = "relative"
	defaultSearchPerPage    = 150
)

// FetchAlerts retrieves all alerting events from the last 24 hours and
// maps them into canonical alerts. The first page determines the total;
// pages are fetched sequentially with the minAlertPages floor applied.
func (c *Client) FetchAlerts(ctx context.Context) ([]models.CanonicalAlert, error) {
	c.logger.Info("fetching alerts from graylog")

	req := models.AlertSearchRequest{
		Query:     "",
		Page:      1,
		PerPage:   alertPageSize,
		Filter:    models.AlertFilter{Alerts: "only"},
		Timerange: models.Timerange{Range: alertTimerangeSeconds, Type: "relative"},
	}

	first, err := c.searchEvents(ctx, req)
	if err != nil {
		return nil, err
	}

	events := first.Events
	pages := int(math.Ceil(float64(first.TotalEvents) / float64(alertPageSize)))
	if pages < minAlertPages {
		pages = minAlertPages
	}

	for page := 2; page <= pages; page++ {
		c.logger.Debug("fetching alerts page", "page", page)
		req.Page = page
		resp, err := c.searchEvents(ctx, req)
		if err != nil {
			return nil, err
		}
		events = append(events, resp.Events...)
	}

	alerts := make([]models.CanonicalAlert, 0, len(events))
	for _, event := range events {
		alert, err := MapEvent(event)
		if err != nil {
			return nil, fmt.Errorf("mapping event %q: %w", event.Event.ID, err)
		}
		alerts = append(alerts, alert)
	}

	c.logger.Info("fetched alerts from graylog", "count", len(alerts))
	return alerts, nil
}

// SearchAlertsPage runs a single caller-specified event search and maps
// the resulting page into canonical alerts. Zero-value request fields
// are filled with the ingestion defaults.
func (c *Client) SearchAlertsPage(ctx context.Context, req models.AlertSearchRequest) ([]models.CanonicalAlert, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PerPage == 0 {
		req.PerPage = alertPageSize
	}
	if req.Filter.Alerts == "" {
		req.Filter.Alerts = "only"
	}
	if req.Timerange == (models.Timerange{}) {
		req.Timerange = models.Timerange{Range: alertTimerangeSeconds, Type: "relative"}
	}

	resp, err := c.searchEvents(ctx, req)
	if err != nil {
		return nil, err
	}

	alerts := make([]models.CanonicalAlert, 0, len(resp.Events))
	for _, event := range resp.Events {
		alert, err := MapEvent(event)
		if err != nil {
			return nil, fmt.Errorf("mapping event %q: %w", event.Event.ID, err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// searchEvents issues one page of POST /events/search.
func (c *Client) searchEvents(ctx context.Context, req models.AlertSearchRequest) (*models.AlertSearchResponse, error) {
	var resp models.AlertSearchResponse
	err := c.do(ctx, "events.search", http.MethodPost,
		c.apiURL([]string{"events", "search"}, nil), req, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchOptions parameterizes a structured log search. Zero values are
// replaced with the documented defaults.
type SearchOptions struct {
	Query            string
	QueryType        string
	TimerangeSeconds int
	TimerangeType    string
	Page             int
	PerPage          int
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.QueryType == "" {
		o.QueryType = defaultQueryType
	}
	if o.TimerangeSeconds == 0 {
		o.TimerangeSeconds = defaultTimerangeSeconds
	}
	if o.TimerangeType == "" {
		o.TimerangeType = defaultTimerangeType
	}
	if o.PerPage == 0 {
		o.PerPage = defaultSearchPerPage
	}
	return o
}

type syncSearchRequest struct {
	Parameters []any             `json:"parameters"`
	Queries    []syncSearchQuery `json:"queries"`
}

type syncSearchQuery struct {
	ID          string              `json:"id"`
	Query       elasticQuery        `json:"query"`
	Timerange   relativeTimerange   `json:"timerange"`
	SearchTypes []messageSearchType `json:"search_types"`
}

type elasticQuery struct {
	Type        string `json:"type"`
	QueryString string `json:"query_string"`
}

type relativeTimerange struct {
	From int    `json:"from"`
	Type string `json:"type"`
}

type messageSearchType struct {
	Timerange  *relativeTimerange `json:"timerange"`
	Query      *elasticQuery      `json:"query"`
	Streams    []string           `json:"streams"`
	Type       string             `json:"type"`
	ID         string             `json:"id"`
	Name       *string            `json:"name"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
	Sort       []sortSpec         `json:"sort"`
	Fields     []string           `json:"fields"`
	Decorators []any              `json:"decorators"`
	Filter     *string            `json:"filter"`
	Filters    []any              `json:"filters"`
}

type sortSpec struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// Search runs a synchronous structured log search and returns the raw
// messages. This is the free-text query path; it is distinct from alert
// ingestion and never produces canonical alerts.
func (c *Client) Search(ctx context.Context, opts SearchOptions) ([]map[string]any, error) {
	opts = opts.withDefaults()
	c.logger.Info("searching graylog", "query", opts.Query)

	offset := opts.Page * opts.PerPage
	if offset < 0 {
		offset = 0
	}

	queryID := uuid.NewString()
	searchTypeID := uuid.NewString()

	body := syncSearchRequest{
		Parameters: []any{},
		Queries: []syncSearchQuery{
			{
				ID:        queryID,
				Query:     elasticQuery{Type: opts.QueryType, QueryString: opts.Query},
				Timerange: relativeTimerange{From: opts.TimerangeSeconds, Type: opts.TimerangeType},
				SearchTypes: []messageSearchType{
					{
						Streams:    []string{},
						Type:       "messages",
						ID:         searchTypeID,
						Limit:      opts.PerPage,
						Offset:     offset,
						Sort:       []sortSpec{{Field: "timestamp", Order: "DESC"}},
						Fields:     []string{},
						Decorators: []any{},
						Filters:    []any{},
					},
				},
			},
		},
	}

	var resp models.SyncSearchResponse
	err := c.do(ctx, "views.search.sync", http.MethodPost,
		c.apiURL([]string{"views", "search", "sync"}, nil), body, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}

	for _, result := range resp.Results {
		if st, ok := result.SearchTypes[searchTypeID]; ok {
			c.logger.Debug("search returned messages", "count", len(st.Messages))
			return st.Messages, nil
		}
	}

	return nil, fmt.Errorf("search response missing search type %s", searchTypeID)
}

// QueryKind selects the query path explicitly; it is never inferred from
// the request contents.
type QueryKind string

const (
	// QueryMessages runs a free-text structured log search.
	QueryMessages QueryKind = "messages"
	// QueryAlerts runs a structured alert search.
	QueryAlerts QueryKind = "alerts"
)

// QueryRequest is a tagged query variant: Search is consulted for
// QueryMessages, Alerts for QueryAlerts.
type QueryRequest struct {
	Kind   QueryKind
	Search SearchOptions
	Alerts models.AlertSearchRequest
}

// QueryResult holds the result of whichever path ran.
type QueryResult struct {
	Messages []map[string]any
	Alerts   []models.CanonicalAlert
}

// Query dispatches to the log-search or alert-search path based on the
// request kind.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	switch req.Kind {
	case QueryMessages:
		messages, err := c.Search(ctx, req.Search)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Messages: messages}, nil
	case QueryAlerts:
		alerts, err := c.SearchAlertsPage(ctx, req.Alerts)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Alerts: alerts}, nil
	}
	return nil, fmt.Errorf("unknown query kind %q", req.Kind)
}
