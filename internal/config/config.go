// Package config handles environment variable configuration loading.
package config

import (
	"errors"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Graylog connection settings
	GraylogUsername      string
	GraylogAccessToken   string
	GraylogDeploymentURL string
	GraylogVerifyTLS     bool

	// Webhook provisioning settings
	WebhookCallbackURL string
	WebhookAPIKey      string
	ProvisionOnStart   bool

	// HTTP server settings
	HTTPPort string

	// Alert store settings
	StorePath string
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error if required fields are missing.
func Load() (*Config, error) {
	cfg := &Config{
		GraylogUsername:      os.Getenv("GRAYLOG_USERNAME"),
		GraylogAccessToken:   os.Getenv("GRAYLOG_ACCESS_TOKEN"),
		GraylogDeploymentURL: os.Getenv("GRAYLOG_DEPLOYMENT_URL"),
		GraylogVerifyTLS:     getEnvBool("GRAYLOG_VERIFY_TLS", true),
		WebhookCallbackURL:   os.Getenv("WEBHOOK_CALLBACK_URL"),
		WebhookAPIKey:        os.Getenv("WEBHOOK_API_KEY"),
		ProvisionOnStart:     getEnvBool("PROVISION_ON_START", false),
		HTTPPort:             getEnvOrDefault("HTTP_PORT", "8080"),
		StorePath:            getEnvOrDefault("STORE_PATH", "data/alerts.db"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.GraylogUsername == "" {
		return errors.New("GRAYLOG_USERNAME is required")
	}
	if c.GraylogAccessToken == "" {
		return errors.New("GRAYLOG_ACCESS_TOKEN is required")
	}
	if c.GraylogDeploymentURL == "" {
		return errors.New("GRAYLOG_DEPLOYMENT_URL is required")
	}
	if c.ProvisionOnStart && c.WebhookCallbackURL == "" {
		return errors.New("WEBHOOK_CALLBACK_URL is required when PROVISION_ON_START is set")
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool parses a boolean environment variable, returning the default
// when unset or unparsable.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
