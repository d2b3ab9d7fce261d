// Package graylog implements the Graylog API adapter: host and version
// discovery, webhook provisioning, and alert/log retrieval normalized
// into the canonical alert model.
package graylog

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alertbridge/graylog2alert-agent/internal/metrics"
)

const (
	// integrationName is sent as X-Requested-By on every request.
	integrationName = "alertbridge-graylog-agent"

	// tokenPassword is the literal Basic auth password Graylog expects
	// when the access token is used as the username.
	tokenPassword = "token"

	requestTimeout = 30 * time.Second
)

// AuthConfig is the validated Graylog credential and endpoint bundle.
type AuthConfig struct {
	Username      string
	AccessToken   string
	DeploymentURL string
	VerifyTLS     bool
}

// Validate checks that all required fields are present.
func (a AuthConfig) Validate() error {
	if a.Username == "" {
		return errors.New("graylog username is required")
	}
	if a.AccessToken == "" {
		return errors.New("graylog access token is required")
	}
	if a.DeploymentURL == "" {
		return errors.New("graylog deployment URL is required")
	}
	return nil
}

// Client handles communication with the Graylog REST API. The resolved
// host is memoized on first use; the server version is detected once at
// construction.
type Client struct {
	auth       AuthConfig
	httpClient *http.Client
	logger     *slog.Logger

	hostOnce sync.Once
	host     string

	version string
	isV4    bool
}

// New creates a Graylog client and detects the server version. It fails
// when the credentials are incomplete or the version cannot be
// determined: the version drives both the notification config shape and
// event-definition filtering, so there is no safe default.
func New(ctx context.Context, auth AuthConfig, logger *slog.Logger) (*Client, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !auth.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c := &Client{
		auth:       auth,
		httpClient: &http.Client{Timeout: requestTimeout, Transport: transport},
		logger:     logger,
	}

	version, err := c.detectVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("detecting Graylog version: %w", err)
	}
	c.version = version
	c.isV4 = strings.HasPrefix(version, "4")

	c.logger.Info("graylog client initialized",
		"version", version,
		"v4_compat", c.isV4,
	)

	return c, nil
}

// Version returns the detected Graylog server version string.
func (c *Client) Version() string {
	return c.version
}

// IsV4 reports whether the backend speaks the Graylog 4.x API.
func (c *Client) IsV4() bool {
	return c.isV4
}

// APIError is a non-expected HTTP status from the Graylog API, carrying
// the response body as message.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graylog API returned status %d: %s", e.StatusCode, e.Body)
}

// do issues an authenticated request and decodes the JSON response into
// result when it is non-nil.
func (c *Client) do(ctx context.Context, operation, method, url string, body any, expectStatus int, result any) error {
	req, err := c.newRequest(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.auth.AccessToken, tokenPassword)
	return c.execute(req, operation, expectStatus, result)
}

// newRequest builds a request with the common headers and an optional
// JSON body. It does not attach credentials; the version probe is the
// one unauthenticated call.
func (c *Client) newRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-By", integrationName)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// execute sends the request, records request metrics, and enforces the
// expected status code. Any other status is returned as an *APIError.
func (c *Client) execute(req *http.Request, operation string, expectStatus int, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.GraylogRequests.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("executing %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	metrics.GraylogRequests.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != expectStatus {
		c.logger.Error("graylog API error",
			"operation", operation,
			"status_code", resp.StatusCode,
			"response", string(respBody),
		)
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response: %w", err)
		}
	}

	return nil
}
