package graylog

import (
	"context"
	"net/http"
	"slices"

	"github.com/alertbridge/graylog2alert-agent/internal/models"
)

// adminRole is the Graylog role required for provisioning operations.
const adminRole = "Admin"

// ScopeStatus is the outcome of a credential scope check.
type ScopeStatus struct {
	Authenticated bool
	Authorized    bool
	Reason        string
}

// ValidateScopes checks that the configured user can authenticate and
// holds Admin privileges. Lookup failures yield an unauthenticated
// status with the cause in Reason rather than an error: the result is a
// report, not a gate.
func (c *Client) ValidateScopes(ctx context.Context) ScopeStatus {
	c.logger.Info("validating user scopes", "username", c.auth.Username)

	var user models.User
	err := c.do(ctx, "users.get", http.MethodGet,
		c.apiURL([]string{"users", c.auth.Username}, nil), nil, http.StatusOK, &user)
	if err != nil {
		c.logger.Error("scope validation failed", "error", err)
		return ScopeStatus{Reason: err.Error()}
	}

	status := ScopeStatus{Authenticated: true}
	if slices.Contains(user.Roles, adminRole) {
		status.Authorized = true
	} else {
		c.logger.Warn("user lacks required admin privileges", "username", c.auth.Username)
		status.Reason = "missing Admin privileges"
	}
	return status
}
