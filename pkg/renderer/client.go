// Package renderer is a client for the external page-render service: a
// headless-browser-backed fetcher that takes a URL and returns the rendered
// page HTML.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the render service operations.
type Client interface {
	Render(ctx context.Context, url string) (*RenderResult, error)
}

// RenderRequest is the body for the render call.
type RenderRequest struct {
	URL string `json:"url"`
}

// renderResponse is the raw wire response. HTML is a pointer so a response
// that omits the field entirely can be told apart from an empty string;
// both are treated as failure.
type renderResponse struct {
	HTML *string `json:"html"`
}

// RenderResult holds the rendered page HTML.
type RenderResult struct {
	HTML string
}

// APIError is returned when the render service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("renderer: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a render service client. baseURL is the full endpoint
// the service accepts render requests on; apiKey may be empty for
// unauthenticated deployments.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Render(ctx context.Context, url string) (*RenderResult, error) {
	buf, err := json.Marshal(RenderRequest{URL: url})
	if err != nil {
		return nil, eris.Wrap(err, "renderer: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "renderer: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "renderer: render %s", url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "renderer: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	var decoded renderResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, eris.Wrap(err, "renderer: decode response")
	}
	if decoded.HTML == nil || *decoded.HTML == "" {
		return nil, eris.Errorf("renderer: response for %s has no html", url)
	}

	return &RenderResult{HTML: *decoded.HTML}, nil
}
