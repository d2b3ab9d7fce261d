package graylog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/alertbridge/graylog2alert-agent/internal/models"
)

func testEvent(id string) models.EventPayload {
	return models.EventPayload{
		Event: models.Event{
			ID:                id,
			EventDefinitionID: "66a1b2c3d4e5f60718293a4b",
			Message:           "event " + id,
			Priority:          1,
			Timestamp:         "2024-05-01T12:00:00.000Z",
		},
	}
}

func TestFetchAlerts_PaginationFloor(t *testing.T) {
	var requests atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req models.AlertSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode search request: %v", err)
		}
		if req.Filter.Alerts != "only" {
			t.Errorf("expected alerts-only filter, got %q", req.Filter.Alerts)
		}
		requests.Add(1)

		// The remote claims 2500 events but only the first three pages
		// carry any; the floor still forces ten page requests.
		resp := models.AlertSearchResponse{TotalEvents: 2500}
		if req.Page <= 3 {
			resp.Events = []models.EventPayload{
				testEvent(fmt.Sprintf("ev-%d-a", req.Page)),
				testEvent(fmt.Sprintf("ev-%d-b", req.Page)),
			}
		}
		json.NewEncoder(w).Encode(resp)
	})

	client := newTestClient(t, "5.2.0", handler)

	alerts, err := client.FetchAlerts(context.Background())
	if err != nil {
		t.Fatalf("FetchAlerts() error = %v", err)
	}

	if got := requests.Load(); got != 10 {
		t.Errorf("expected exactly 10 page requests, got %d", got)
	}
	if len(alerts) != 6 {
		t.Errorf("expected 6 alerts, got %d", len(alerts))
	}
	for _, alert := range alerts {
		if alert.Fingerprint == "" {
			t.Errorf("alert %s missing fingerprint", alert.ID)
		}
		if alert.Status != models.StatusFiring {
			t.Errorf("alert %s has status %q", alert.ID, alert.Status)
		}
	}
}

func TestFetchAlerts_MoreThanFloorPages(t *testing.T) {
	var requests atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		json.NewEncoder(w).Encode(models.AlertSearchResponse{TotalEvents: 12000})
	})

	client := newTestClient(t, "5.2.0", handler)

	if _, err := client.FetchAlerts(context.Background()); err != nil {
		t.Fatalf("FetchAlerts() error = %v", err)
	}
	if got := requests.Load(); got != 12 {
		t.Errorf("expected 12 page requests for 12000 events, got %d", got)
	}
}

// syncSearchCapture mirrors the sync search request shape for assertions.
type syncSearchCapture struct {
	Queries []struct {
		ID    string `json:"id"`
		Query struct {
			Type        string `json:"type"`
			QueryString string `json:"query_string"`
		} `json:"query"`
		Timerange struct {
			From int    `json:"from"`
			Type string `json:"type"`
		} `json:"timerange"`
		SearchTypes []struct {
			ID     string `json:"id"`
			Limit  int    `json:"limit"`
			Offset int    `json:"offset"`
		} `json:"search_types"`
	} `json:"queries"`
}

func syncSearchHandler(t *testing.T, captured *syncSearchCapture, messages []map[string]any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/views/search/sync" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Fatalf("failed to decode sync search request: %v", err)
		}
		if len(captured.Queries) != 1 || len(captured.Queries[0].SearchTypes) != 1 {
			t.Fatal("expected one query with one search type")
		}

		queryID := captured.Queries[0].ID
		searchTypeID := captured.Queries[0].SearchTypes[0].ID
		json.NewEncoder(w).Encode(models.SyncSearchResponse{
			Results: map[string]models.SyncSearchResult{
				queryID: {
					SearchTypes: map[string]models.SearchTypeResult{
						searchTypeID: {Messages: messages},
					},
				},
			},
		})
	})
}

func TestSearch_OffsetAndDefaults(t *testing.T) {
	var captured syncSearchCapture
	messages := []map[string]any{{"message": map[string]any{"source": "web-1"}}}

	client := newTestClient(t, "5.2.0", syncSearchHandler(t, &captured, messages))

	got, err := client.Search(context.Background(), SearchOptions{
		Query:   "source:web-1",
		Page:    0,
		PerPage: 50,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}

	st := captured.Queries[0].SearchTypes[0]
	if st.Offset != 0 {
		t.Errorf("expected offset 0, got %d", st.Offset)
	}
	if st.Limit != 50 {
		t.Errorf("expected limit 50, got %d", st.Limit)
	}
	if captured.Queries[0].Query.Type != "elastic" {
		t.Errorf("expected default elastic query type, got %q", captured.Queries[0].Query.Type)
	}
	if captured.Queries[0].Timerange.From != 300 || captured.Queries[0].Timerange.Type != "relative" {
		t.Errorf("expected default relative 300s timerange, got %+v", captured.Queries[0].Timerange)
	}
}

func TestSearch_NegativePageClampsOffset(t *testing.T) {
	var captured syncSearchCapture

	client := newTestClient(t, "5.2.0", syncSearchHandler(t, &captured, nil))

	if _, err := client.Search(context.Background(), SearchOptions{
		Query: "anything",
		Page:  -1,
	}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if offset := captured.Queries[0].SearchTypes[0].Offset; offset != 0 {
		t.Errorf("expected clamped offset 0, got %d", offset)
	}
	if limit := captured.Queries[0].SearchTypes[0].Limit; limit != 150 {
		t.Errorf("expected default per_page 150, got %d", limit)
	}
}

func TestQuery_Dispatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/views/search/sync", func(w http.ResponseWriter, r *http.Request) {
		var captured syncSearchCapture
		json.NewDecoder(r.Body).Decode(&captured)
		queryID := captured.Queries[0].ID
		searchTypeID := captured.Queries[0].SearchTypes[0].ID
		json.NewEncoder(w).Encode(models.SyncSearchResponse{
			Results: map[string]models.SyncSearchResult{
				queryID: {SearchTypes: map[string]models.SearchTypeResult{
					searchTypeID: {Messages: []map[string]any{{"message": "hit"}}},
				}},
			},
		})
	})
	mux.HandleFunc("/api/events/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.AlertSearchResponse{
			Events:      []models.EventPayload{testEvent("ev-1")},
			TotalEvents: 1,
		})
	})

	client := newTestClient(t, "5.2.0", mux)

	messages, err := client.Query(context.Background(), QueryRequest{
		Kind:   QueryMessages,
		Search: SearchOptions{Query: "source:web-1"},
	})
	if err != nil {
		t.Fatalf("Query(messages) error = %v", err)
	}
	if len(messages.Messages) != 1 || messages.Alerts != nil {
		t.Errorf("expected messages-only result, got %+v", messages)
	}

	alerts, err := client.Query(context.Background(), QueryRequest{Kind: QueryAlerts})
	if err != nil {
		t.Fatalf("Query(alerts) error = %v", err)
	}
	if len(alerts.Alerts) != 1 || alerts.Messages != nil {
		t.Errorf("expected alerts-only result, got %+v", alerts)
	}

	if _, err := client.Query(context.Background(), QueryRequest{Kind: "bogus"}); err == nil {
		t.Error("expected error for unknown query kind")
	}
}
