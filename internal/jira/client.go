// Package jira is a small REST client for the Jira Cloud platform, agile
// and greenhopper endpoints the sprint reports read from.
package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andywolf/sprintwatch/internal/security"
	"github.com/andywolf/sprintwatch/internal/version"
)

const (
	acceptHeader    = "application/json"
	defaultPageSize = 100
	maxErrorBody    = 512
)

// APIError is returned for any non-2xx tracker response.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// StatusOf returns the HTTP status carried by err, or 0 if err is not an
// *APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client talks to a single Jira site using basic auth (email + API token).
type Client struct {
	baseURL    string
	auth       string
	httpClient *http.Client
	pageSize   int
	scrubber   *security.Scrubber
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (useful for testing)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a client-wide request timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithPageSize sets maxResults for paginated searches
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient creates a client for the site at domain, e.g.
// https://acme.atlassian.net.
func NewClient(domain, email, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(domain, "/"),
		auth:       "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+token)),
		httpClient: &http.Client{},
		pageSize:   defaultPageSize,
		scrubber:   security.NewScrubber(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.scrubber.AddLiteral(token)
	return c
}

// PageSize returns the configured search page size.
func (c *Client) PageSize() int {
	return c.pageSize
}

func (c *Client) newRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", version.UserAgent())

	return req, nil
}

// getJSON performs a GET and decodes a 2xx response into out.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	req, err := c.newRequest(ctx, path, query)
	if err != nil {
		return fmt.Errorf("jira %s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jira %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       c.scrubber.Scrub(strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("jira %s: decode response: %w", op, err)
	}
	return nil
}

// Raw performs a GET and returns the status code and body without
// interpreting either. Used by the diagnostic commands.
func (c *Client) Raw(ctx context.Context, path string, query url.Values) (int, []byte, error) {
	req, err := c.newRequest(ctx, path, query)
	if err != nil {
		return 0, nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("jira raw %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("jira raw %s: read body: %w", path, err)
	}
	return resp.StatusCode, body, nil
}
