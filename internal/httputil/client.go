// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"
)

// Limiter is a token-bucket rate limiter for one remote API. A nil Limiter
// never blocks. rate.Limiter is safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows perSecond requests per second with the given burst.
// A non-positive perSecond disables limiting.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Client bundles the HTTP client, rate limiter, retry budget and User-Agent
// used to talk to one remote API.
type Client struct {
	HTTP       *http.Client
	Limiter    *Limiter
	MaxRetries int
	UserAgent  string
}

// Do waits on the limiter, sets the User-Agent, and sends req through
// DoWithRetry. The caller closes the response body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	return DoWithRetry(ctx, hc, req, c.MaxRetries)
}
