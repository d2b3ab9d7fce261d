// Package main is the entrypoint for the graylog2alert agent service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alertbridge/graylog2alert-agent/internal/config"
	"github.com/alertbridge/graylog2alert-agent/internal/graylog"
	"github.com/alertbridge/graylog2alert-agent/internal/logging"
	"github.com/alertbridge/graylog2alert-agent/internal/store"
	"github.com/alertbridge/graylog2alert-agent/internal/webhook"
)

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	logger := logging.NewLogger()
	logger.Info("starting graylog2alert-agent")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"http_port", cfg.HTTPPort,
		"graylog_deployment_url", cfg.GraylogDeploymentURL,
		"store_path", cfg.StorePath,
		"provision_on_start", cfg.ProvisionOnStart,
	)

	alertStore, err := store.Open(cfg.StorePath)
	if err != nil {
		logger.Error("failed to open alert store", "error", err)
		os.Exit(1)
	}
	defer alertStore.Close()

	if cfg.ProvisionOnStart {
		if err := provision(cfg, alertStore, logger); err != nil {
			logger.Error("webhook provisioning failed", "error", err)
			os.Exit(1)
		}
	}

	webhookHandler := webhook.NewHandler(alertStore, cfg.WebhookAPIKey, logging.WithComponent(logger, "webhook"))

	mux := http.NewServeMux()

	// Graylog notification push endpoint
	mux.Handle("/graylog/webhook", webhookHandler)

	// Recently received alerts, newest first
	mux.HandleFunc("/alerts", alertsHandler(alertStore, logger))

	// Health and readiness probes
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/readyz", readyzHandler)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%s", cfg.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// provision installs the webhook notification in Graylog and records
// the provisioning flag on the provider's dedup rule.
func provision(cfg *config.Config, alertStore *store.Store, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := graylog.New(ctx, graylog.AuthConfig{
		Username:      cfg.GraylogUsername,
		AccessToken:   cfg.GraylogAccessToken,
		DeploymentURL: cfg.GraylogDeploymentURL,
		VerifyTLS:     cfg.GraylogVerifyTLS,
	}, logging.WithComponent(logger, "graylog"))
	if err != nil {
		return err
	}

	if err := client.SetupWebhook(ctx, cfg.WebhookCallbackURL, cfg.WebhookAPIKey); err != nil {
		return err
	}

	providerID, err := graylog.ProviderIDFromCallback(cfg.WebhookCallbackURL)
	if err != nil {
		return err
	}
	if err := alertStore.EnsureDedupRule(ctx, providerID, []string{"id"}); err != nil {
		return err
	}
	return alertStore.MarkProvisioned(ctx, providerID)
}

// alertsHandler serves the most recently seen alerts as JSON. The limit
// query parameter caps the page size at 1000.
func alertsHandler(alertStore *store.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 1000 {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		alerts, err := alertStore.ListAlerts(r.Context(), limit)
		if err != nil {
			logger.Error("failed to list alerts", "error", err)
			http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(alerts); err != nil {
			logger.Error("failed to encode alerts", "error", err)
		}
	}
}

// healthzHandler handles liveness probe requests.
func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// readyzHandler handles readiness probe requests.
func readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
