package graylog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/alertbridge/graylog2alert-agent/internal/models"
)

// detectVersion reads the server version from the unauthenticated API
// root. A failed probe is an error: callers must not guess the version.
func (c *Client) detectVersion(ctx context.Context) (string, error) {
	c.logger.Debug("probing graylog version")

	req, err := c.newRequest(ctx, http.MethodGet, c.apiURL(nil, nil), nil)
	if err != nil {
		return "", err
	}

	var root models.VersionResponse
	if err := c.execute(req, "version", http.StatusOK, &root); err != nil {
		return "", err
	}

	version := strings.TrimSpace(root.Version)
	if version == "" {
		return "", errors.New("version missing from API root response")
	}

	return version, nil
}
