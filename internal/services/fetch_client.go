package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// FetchClient wraps an HTTP client tuned for polling JSON metrics APIs.
type FetchClient struct {
	httpClient *http.Client
	userAgent  string
}

// NewFetchClient creates an HTTP client with pooled connections sized for a
// small set of upstream hosts polled repeatedly.
func NewFetchClient() *FetchClient {
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10, // default of 2 starves repeated polls of the same host
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &FetchClient{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (max 10)")
				}
				return nil
			},
		},
		userAgent: "chainboard/1.0 (+https://chainboard.example.com)",
	}
}

// Get performs an HTTP GET with JSON accept headers. The caller owns the
// response body. Cancellation and deadlines come from ctx; the client itself
// sets no overall timeout so the fetch layer's retry budget stays in charge.
func (c *FetchClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// SetUserAgent updates the user agent string.
func (c *FetchClient) SetUserAgent(userAgent string) {
	c.userAgent = userAgent
}
