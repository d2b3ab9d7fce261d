package graylog

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"strings"
)

// Host returns the resolved Graylog base URL. Resolution runs at most
// once per client; concurrent first callers share a single probe.
func (c *Client) Host() string {
	c.hostOnce.Do(c.resolveHost)
	return c.host
}

// resolveHost determines the reachable base URL and scheme. A deployment
// URL that already carries a scheme is used verbatim. Otherwise HTTPS is
// probed first; a TLS failure falls back to HTTP, and any other probe
// failure degrades to the configured value as-is. Probe failures are
// logged, never returned: the next real call surfaces the problem.
func (c *Client) resolveHost() {
	deployment := c.auth.DeploymentURL

	if strings.HasPrefix(deployment, "http://") || strings.HasPrefix(deployment, "https://") {
		c.logger.Debug("using supplied graylog host with scheme", "host", deployment)
		c.host = deployment
		return
	}

	c.logger.Debug("probing HTTPS reachability", "host", deployment)
	resp, err := c.httpClient.Get("https://" + deployment)
	if err == nil {
		resp.Body.Close()
		c.logger.Info("HTTPS scheme confirmed", "host", deployment)
		c.host = "https://" + deployment
		return
	}

	if isTLSError(err) {
		c.logger.Warn("TLS error during host probe, falling back to HTTP",
			"host", deployment,
			"error", err,
		)
		c.host = "http://" + deployment
		return
	}

	c.logger.Error("failed to determine graylog host, using configured value as-is",
		"host", deployment,
		"error", err,
	)
	c.host = strings.TrimRight(deployment, "/")
}

// isTLSError reports whether err stems from TLS negotiation or
// certificate verification rather than plain connectivity.
func isTLSError(err error) bool {
	var (
		recordErr        tls.RecordHeaderError
		verificationErr  *tls.CertificateVerificationError
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		certInvalidErr   x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &verificationErr) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &certInvalidErr)
}
