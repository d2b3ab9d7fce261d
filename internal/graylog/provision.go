package graylog

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/alertbridge/graylog2alert-agent/internal/models"
)

const (
	// notificationTitlePrefix plus the provider id forms the stable
	// title that identifies this integration's notification channel.
	notificationTitlePrefix = "alertbridge"

	notificationDescription = "This notification is managed by the alertbridge Graylog agent; do not change the title."

	eventDefinitionPageSize = 100

	// scopeSystemNotification marks definitions owned by Graylog itself
	// on v5+; binding external notifications to them is rejected there.
	scopeSystemNotification = "SYSTEM_NOTIFICATION_EVENT"
)

// SetupWebhook idempotently provisions the outbound notification channel
// in Graylog: it whitelists the callback URL, replaces any notification
// previously created for the same provider id, and rebinds every event
// definition to the new notification.
//
// The steps are ordered because later ones consume ids produced earlier.
// A failure aborts the remaining steps without rolling back; reruns
// converge because each step looks up current state before writing.
func (c *Client) SetupWebhook(ctx context.Context, callbackURL, apiKey string) error {
	c.logger.Info("setting up webhook in graylog")

	providerID, err := ProviderIDFromCallback(callbackURL)
	if err != nil {
		return err
	}
	title := notificationTitlePrefix + "-" + providerID

	// v4 has no header support on HTTP notifications; the API key rides
	// on the callback URL instead.
	if c.isV4 {
		callbackURL, err = appendAPIKey(callbackURL, apiKey)
		if err != nil {
			return err
		}
	}

	definitions, err := c.listEventDefinitions(ctx)
	if err != nil {
		return err
	}

	if err := c.whitelistCallback(ctx, title, callbackURL); err != nil {
		return err
	}

	staleID, err := c.deleteExistingNotification(ctx, title)
	if err != nil {
		return err
	}

	newID, err := c.createNotification(ctx, title, callbackURL, apiKey)
	if err != nil {
		return err
	}

	for _, definition := range definitions {
		if !c.isV4 && definition.Scope() == scopeSystemNotification {
			c.logger.Info("skipping system-scoped event definition", "id", definition.ID())
			continue
		}

		if staleID != "" {
			definition.RemoveNotification(staleID)
		}
		definition.AddNotification(newID)

		if err := c.updateEventDefinition(ctx, definition); err != nil {
			return err
		}
	}

	c.logger.Info("webhook setup completed", "notification_id", newID, "definitions", len(definitions))
	return nil
}

// ProviderIDFromCallback extracts the provider_id query parameter that
// makes the notification title stable across reruns.
func ProviderIDFromCallback(callbackURL string) (string, error) {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return "", fmt.Errorf("parsing callback URL: %w", err)
	}
	providerID := parsed.Query().Get("provider_id")
	if providerID == "" {
		return "", fmt.Errorf("callback URL %q is missing the provider_id query parameter", callbackURL)
	}
	return providerID, nil
}

// appendAPIKey adds the api_key query parameter to the callback URL.
func appendAPIKey(callbackURL, apiKey string) (string, error) {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return "", fmt.Errorf("parsing callback URL: %w", err)
	}
	query := parsed.Query()
	query.Set("api_key", apiKey)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// listEventDefinitions enumerates all event definitions. The first page
// reports the total; remaining pages are fetched sequentially.
func (c *Client) listEventDefinitions(ctx context.Context) ([]models.EventDefinition, error) {
	first, err := c.eventDefinitionsPage(ctx, 1)
	if err != nil {
		return nil, err
	}

	definitions := first.EventDefinitions
	totalPages := int(math.Ceil(float64(first.Total) / float64(eventDefinitionPageSize)))

	for page := 2; page <= totalPages; page++ {
		c.logger.Debug("fetching event definitions page", "page", page)
		next, err := c.eventDefinitionsPage(ctx, page)
		if err != nil {
			return nil, err
		}
		definitions = append(definitions, next.EventDefinitions...)
	}

	c.logger.Info("fetched event definitions", "count", len(definitions))
	return definitions, nil
}

func (c *Client) eventDefinitionsPage(ctx context.Context, page int) (*models.EventDefinitionsPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(eventDefinitionPageSize))

	var resp models.EventDefinitionsPage
	err := c.do(ctx, "events.definitions.list", http.MethodGet,
		c.apiURL([]string{"events", "definitions"}, query), nil, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// whitelistCallback ensures the callback URL is on the Graylog URL
// whitelist. Membership is an exact match on the entry value; when the
// URL is already present no write is issued. The update replaces the
// whole collection, so concurrent writers can lose entries.
func (c *Client) whitelistCallback(ctx context.Context, title, callbackURL string) error {
	var whitelist models.Whitelist
	err := c.do(ctx, "system.urlwhitelist.get", http.MethodGet,
		c.apiURL([]string{"system", "urlwhitelist"}, nil), nil, http.StatusOK, &whitelist)
	if err != nil {
		return err
	}

	for _, entry := range whitelist.Entries {
		if entry.Value == callbackURL {
			c.logger.Info("callback URL already whitelisted")
			return nil
		}
	}

	c.logger.Info("adding callback URL to whitelist")
	whitelist.Entries = append(whitelist.Entries, models.WhitelistEntry{
		ID:    uuid.NewString(),
		Title: title,
		Value: callbackURL,
		Type:  "literal",
	})

	return c.do(ctx, "system.urlwhitelist.update", http.MethodPut,
		c.apiURL([]string{"system", "urlwhitelist"}, nil), whitelist, http.StatusNoContent, nil)
}

// deleteExistingNotification looks up a notification by title and, when
// one exists, deletes it and returns its id so references to it can be
// stripped from event definitions.
func (c *Client) deleteExistingNotification(ctx context.Context, title string) (string, error) {
	query := url.Values{}
	query.Set("page", "1")
	query.Set("per_page", "1")
	query.Set("query", "title:"+title)

	var page models.NotificationPage
	err := c.do(ctx, "events.notifications.query", http.MethodGet,
		c.apiURL([]string{"events", "notifications"}, query), nil, http.StatusOK, &page)
	if err != nil {
		return "", err
	}

	if page.Count == 0 || len(page.Notifications) == 0 {
		return "", nil
	}

	staleID := page.Notifications[0].ID
	c.logger.Info("deleting existing notification", "id", staleID, "title", title)

	err = c.do(ctx, "events.notifications.delete", http.MethodDelete,
		c.apiURL([]string{"events", "notifications", staleID}, nil), nil, http.StatusNoContent, nil)
	if err != nil {
		return "", err
	}
	return staleID, nil
}

// createNotification creates the HTTP notification with the
// version-specific config shape and returns the new notification id.
func (c *Client) createNotification(ctx context.Context, title, callbackURL, apiKey string) (string, error) {
	var config any
	if c.isV4 {
		config = models.HTTPNotificationV1{
			Type: "http-notification-v1",
			URL:  callbackURL,
		}
	} else {
		// TLS verification is skipped because the callback endpoint may
		// serve a self-managed certificate.
		config = models.HTTPNotificationV2{
			Type:                "http-notification-v2",
			URL:                 callbackURL,
			SkipTLSVerification: true,
			Method:              "POST",
			TimeZone:            "UTC",
			ContentType:         "JSON",
			Headers:             "X-API-KEY:" + apiKey,
		}
	}

	body := models.Notification{
		Title:       title,
		Description: notificationDescription,
		Config:      config,
	}

	c.logger.Info("creating notification", "title", title)

	var created models.Notification
	err := c.do(ctx, "events.notifications.create", http.MethodPost,
		c.apiURL([]string{"events", "notifications"}, nil), body, http.StatusOK, &created)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// updateEventDefinition persists a definition via a full-object replace.
func (c *Client) updateEventDefinition(ctx context.Context, definition models.EventDefinition) error {
	c.logger.Debug("updating event definition", "id", definition.ID())
	return c.do(ctx, "events.definitions.update", http.MethodPut,
		c.apiURL([]string{"events", "definitions", definition.ID()}, nil), definition, http.StatusOK, nil)
}
