package graylog

import (
	"net/url"
	"strings"
)

// apiURL joins path segments under the resolved host's /api root and
// appends an encoded query string when params are given.
func (c *Client) apiURL(segments []string, query url.Values) string {
	base := strings.TrimRight(strings.TrimSpace(c.Host()), "/") + "/api"

	if len(segments) > 0 {
		base += "/" + strings.Join(segments, "/")
	}
	if len(query) > 0 {
		base += "?" + query.Encode()
	}

	return base
}
