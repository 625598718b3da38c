// Package upstream is the HTTP client shared by every tool that calls a
// government API. Requests carry a user agent and a timeout, and are traced
// through the otelhttp transport.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"govukmcp/internal/models"
	"govukmcp/internal/version"
)

// maxDrain bounds how much of an error body is read before the connection is
// reused.
const maxDrain = 4096

// Client performs JSON GET requests against upstream APIs.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient builds a Client from the upstream configuration. An empty user
// agent falls back to the build's product token.
func NewClient(cfg models.UpstreamConfig) *Client {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = version.GetInfo().UserAgent()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		userAgent: userAgent,
	}
}

// RequestOption customises an outgoing request.
type RequestOption func(*http.Request)

// WithBasicAuth sets HTTP basic credentials.
func WithBasicAuth(username, password string) RequestOption {
	return func(r *http.Request) {
		r.SetBasicAuth(username, password)
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// StatusError reports a non-2xx upstream response. The body is discarded.
type StatusError struct {
	StatusCode int
	URL        string // host and path only, never the query
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// GetJSON issues a GET to rawURL with query appended and decodes the JSON
// response into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, out any, opts ...RequestOption) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid upstream URL: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s%s: %w", u.Host, u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
		return &StatusError{StatusCode: resp.StatusCode, URL: u.Host + u.Path}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", u.Host, err)
	}
	return nil
}
