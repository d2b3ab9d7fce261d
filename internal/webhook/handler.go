// Package webhook handles alert payloads pushed by Graylog notifications.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alertbridge/graylog2alert-agent/internal/graylog"
	"github.com/alertbridge/graylog2alert-agent/internal/metrics"
	"github.com/alertbridge/graylog2alert-agent/internal/models"
)

// AlertSink receives mapped canonical alerts. It reports whether the
// alert was new (true) or deduplicated against an earlier delivery.
type AlertSink interface {
	UpsertAlert(ctx context.Context, alert models.CanonicalAlert) (bool, error)
}

// Handler handles Graylog notification webhook requests.
type Handler struct {
	sink   AlertSink
	apiKey string
	logger *slog.Logger
}

// NewHandler creates a new webhook handler. An empty apiKey disables
// request authentication.
func NewHandler(sink AlertSink, apiKey string, logger *slog.Logger) *Handler {
	return &Handler{
		sink:   sink,
		apiKey: apiKey,
		logger: logger,
	}
}

// ServeHTTP handles an incoming notification push from Graylog.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.authorized(r) {
		h.logger.Warn("rejected webhook request with bad API key")
		metrics.AlertsReceived.WithLabelValues("rejected").Inc()
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	timer := prometheus.NewTimer(metrics.ProcessingDuration)
	defer timer.ObserveDuration()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read request body", "error", err)
		metrics.AlertsReceived.WithLabelValues("error").Inc()
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var payload models.EventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Error("failed to parse event payload", "error", err)
		metrics.AlertsReceived.WithLabelValues("error").Inc()
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	alert, err := graylog.MapEvent(payload)
	if err != nil {
		h.logger.Error("failed to map event",
			"event_id", payload.Event.ID,
			"error", err,
		)
		metrics.AlertsReceived.WithLabelValues("error").Inc()
		http.Error(w, "Invalid event payload", http.StatusBadRequest)
		return
	}

	created, err := h.sink.UpsertAlert(r.Context(), alert)
	if err != nil {
		h.logger.Error("failed to store alert",
			"fingerprint", alert.Fingerprint,
			"error", err,
		)
		metrics.AlertsReceived.WithLabelValues("error").Inc()
		http.Error(w, "Failed to store alert", http.StatusInternalServerError)
		return
	}

	metrics.AlertsReceived.WithLabelValues("accepted").Inc()
	if created {
		metrics.AlertsStored.WithLabelValues("new").Inc()
	} else {
		metrics.AlertsStored.WithLabelValues("duplicate").Inc()
	}

	h.logger.Info("processed graylog alert",
		"event_id", alert.ID,
		"name", alert.Name,
		"severity", alert.Severity,
		"fingerprint", alert.Fingerprint,
		"new", created,
	)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// authorized checks the shared API key. Channels provisioned against
// Graylog v4 deliver the key as an api_key query parameter; newer
// versions send the X-API-KEY header.
func (h *Handler) authorized(r *http.Request) bool {
	if h.apiKey == "" {
		return true
	}
	key := r.Header.Get("X-API-KEY")
	if key == "" {
		key = r.URL.Query().Get("api_key")
	}
	return key == h.apiKey
}
