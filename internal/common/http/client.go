// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"
)

// Client wraps http.Client with pooling tuned for a single API host.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewPollingClient returns a client whose timeout leaves headroom over the
// long-poll window, so held-open update requests are not cut short.
func NewPollingClient(pollTimeout time.Duration) *Client {
	return NewClient(pollTimeout + 10*time.Second)
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}
