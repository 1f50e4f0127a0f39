// Package fetcher provides the HTTP client used for upstream GETs.
package fetcher

import (
	"context"
	"net/url"
	"time"
)

// Response is a fully read HTTP response.
type Response struct {
	URL        string // final request URL including the encoded query
	StatusCode int
	Body       []byte

	retryAfter time.Duration
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Fetcher defines the interface for issuing upstream GET requests.
type Fetcher interface {
	// Get requests rawURL with params merged into its query string. A non-2xx
	// status is not an error; only transport failures are.
	Get(ctx context.Context, rawURL string, params url.Values) (*Response, error)
}
