package graylog

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// bareClient builds a client without running version detection, for
// exercising host resolution in isolation.
func bareClient(auth AuthConfig) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !auth.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		auth:       auth,
		httpClient: &http.Client{Timeout: 5 * time.Second, Transport: transport},
		logger:     newTestLogger(),
	}
}

func TestHost_ExplicitSchemeUsedVerbatim(t *testing.T) {
	client := bareClient(AuthConfig{DeploymentURL: "http://graylog.internal:9000"})
	if host := client.Host(); host != "http://graylog.internal:9000" {
		t.Errorf("unexpected host %q", host)
	}

	client = bareClient(AuthConfig{DeploymentURL: "https://graylog.internal"})
	if host := client.Host(); host != "https://graylog.internal" {
		t.Errorf("unexpected host %q", host)
	}
}

func TestHost_ProbeAdoptsHTTPS(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bare := strings.TrimPrefix(server.URL, "https://")
	client := bareClient(AuthConfig{DeploymentURL: bare, VerifyTLS: false})

	if host := client.Host(); host != "https://"+bare {
		t.Errorf("expected https host, got %q", host)
	}
	if probes.Load() != 1 {
		t.Fatalf("expected exactly one probe, got %d", probes.Load())
	}

	// Resolution is memoized: further calls must not probe again.
	for i := 0; i < 3; i++ {
		client.Host()
	}
	if probes.Load() != 1 {
		t.Errorf("expected memoized host, got %d probes", probes.Load())
	}
}

func TestHost_TLSErrorFallsBackToHTTP(t *testing.T) {
	// Self-signed server certificate with verification enabled yields a
	// TLS verification error, which must degrade to HTTP.
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bare := strings.TrimPrefix(server.URL, "https://")
	client := bareClient(AuthConfig{DeploymentURL: bare, VerifyTLS: true})

	if host := client.Host(); host != "http://"+bare {
		t.Errorf("expected http fallback, got %q", host)
	}
}

func TestHost_PlainHTTPServerFallsBackToHTTP(t *testing.T) {
	// Speaking TLS to a plain HTTP listener is a TLS record error, not a
	// connectivity failure, so the HTTP fallback applies.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bare := strings.TrimPrefix(server.URL, "http://")
	client := bareClient(AuthConfig{DeploymentURL: bare, VerifyTLS: true})

	if host := client.Host(); host != "http://"+bare {
		t.Errorf("expected http fallback, got %q", host)
	}
}

func TestHost_UnreachableHostDegradesToConfiguredValue(t *testing.T) {
	client := bareClient(AuthConfig{DeploymentURL: "127.0.0.1:1/", VerifyTLS: true})

	if host := client.Host(); host != "127.0.0.1:1" {
		t.Errorf("expected configured value trimmed of trailing slashes, got %q", host)
	}
}

func TestAPIURL(t *testing.T) {
	client := bareClient(AuthConfig{DeploymentURL: "http://graylog.internal:9000/"})

	tests := []struct {
		segments []string
		query    map[string]string
		want     string
	}{
		{nil, nil, "http://graylog.internal:9000/api"},
		{[]string{"events", "search"}, nil, "http://graylog.internal:9000/api/events/search"},
		{[]string{"events", "definitions"}, map[string]string{"page": "2"},
			"http://graylog.internal:9000/api/events/definitions?page=2"},
	}

	for _, tt := range tests {
		query := urlValues(tt.query)
		if got := client.apiURL(tt.segments, query); got != tt.want {
			t.Errorf("apiURL(%v, %v) = %q, want %q", tt.segments, tt.query, got, tt.want)
		}
	}
}

func urlValues(m map[string]string) url.Values {
	if m == nil {
		return nil
	}
	values := url.Values{}
	for k, v := range m {
		values.Set(k, v)
	}
	return values
}
