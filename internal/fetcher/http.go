package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fundnav/internal/resilience"
)

// maxBodyBytes caps how much of a response body is read into memory.
const maxBodyBytes = 16 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	// Headers are sent on every request (e.g. Referer, User-Agent).
	Headers map[string]string
	// Timeout bounds a single request attempt. Default: 10s.
	Timeout time.Duration
	// MaxAttempts is the total number of attempts per request. Default: 1 (no retry).
	MaxAttempts int
	// RequestsPerSecond throttles outgoing requests when > 0.
	RequestsPerSecond float64
	// Retry overrides backoff settings; MaxAttempts above takes precedence.
	Retry *resilience.RetryConfig
}

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	retry := resilience.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	retry.MaxAttempts = opts.MaxAttempts
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("upstream", "get")
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     40,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:    opts,
		limiter: limiter,
		retry:   retry,
	}
}

// Get fetches rawURL with params and returns the fully read response.
// Transient statuses (408, 429, 5xx) are retried while attempts remain,
// waiting out any Retry-After the server sent; the last such response is
// returned as-is rather than as an error.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var last *Response
	resp, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*Response, error) {
		r, err := f.do(ctx, u.String())
		if err != nil {
			return nil, err
		}
		last = r
		if resilience.IsTransientHTTPStatus(r.StatusCode) {
			te := resilience.NewTransientError(eris.Errorf("http %d from %s", r.StatusCode, r.URL), r.StatusCode)
			te.RetryAfter = r.retryAfter
			return nil, te
		}
		return r, nil
	})
	if err != nil {
		var te *resilience.TransientError
		if last != nil && errors.As(err, &te) && te.StatusCode != 0 {
			return last, nil
		}
		return nil, eris.Wrap(err, "fetcher: get")
	}
	return resp, nil
}

func (f *HTTPFetcher) do(ctx context.Context, target string) (*Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	for k, v := range f.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		zap.L().Debug("upstream request failed", zap.String("url", target), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}

	return &Response{
		URL:        target,
		StatusCode: resp.StatusCode,
		Body:       body,
		retryAfter: resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}, nil
}
