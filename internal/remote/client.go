// Package remote is the single point of contact with the REST backend.
//
// Every Collection method issues exactly one HTTP request. There is no
// caching, deduplication, retry or backoff, and no optimistic local
// mutation: a failed write is always reported as a failure. Callers decide
// what to show while a request is in flight and what to do when it fails.
//
// Conventions of the backend:
//   - list endpoints return a flat JSON array, fetched in full
//   - PATCH for partial updates, POST for creation, DELETE for removal
//   - JSON bodies with content-type application/json
//   - success is any 2xx status, never a body field
//   - no authentication header
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues requests against one backend base URL.
type Client struct {
	base   *url.URL
	http   Doer
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for an absolute http(s) base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", baseURL)
	}

	c := &Client{
		base:   u,
		http:   http.DefaultClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewHTTPClient builds the transport used against the backend.
// A zero timeout means no deadline. With tracing enabled the transport is
// wrapped so each request produces a client span on the global provider.
func NewHTTPClient(timeout time.Duration, tracing bool) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport
	if tracing {
		rt = otelhttp.NewTransport(rt)
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Collection returns a handle on the resource at path (e.g. "deposit" or
// "user-list/bal-update"). idField names the identifier of its records.
func (c *Client) Collection(path, idField string) *Collection {
	return &Collection{
		client:  c,
		path:    strings.Trim(path, "/"),
		idField: idField,
	}
}

func (c *Client) endpoint(parts ...string) string {
	u := *c.base
	segs := []string{strings.TrimRight(u.Path, "/")}
	for _, p := range parts {
		if p == "" {
			continue
		}
		segs = append(segs, p)
	}
	u.Path = strings.Join(segs, "/")
	u.RawPath = ""
	return u.String()
}

// do performs one request and returns the raw response body on 2xx.
func (c *Client) do(ctx context.Context, method, target string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, &FetchError{Cause: CauseParse, Method: method, URL: target, Err: fmt.Errorf("encode payload: %w", err)}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &FetchError{Cause: CauseNetwork, Method: method, URL: target, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("remote request failed", "method", method, "url", target, "error", err)
		return nil, &FetchError{Cause: CauseNetwork, Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	c.logger.Debug("remote request",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Cause: CauseHTTP, Method: method, URL: target, Status: resp.StatusCode}
	}
	if readErr != nil {
		return nil, &FetchError{Cause: CauseNetwork, Method: method, URL: target, Err: readErr}
	}
	return data, nil
}
