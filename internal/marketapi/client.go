// Package marketapi talks to the public market price endpoints and
// normalizes their payloads into engine snapshots.
package marketapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	AggregatesURL     string
	QuotesURL         string
	CharName          string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client is a rate-limited HTTP client for the aggregate and quote endpoints.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	opts    Options
}

// NewClient creates a client. A non-positive RequestsPerSecond disables
// rate limiting.
func NewClient(opts Options) *Client {
	if opts.CharName == "" {
		opts.CharName = "none"
	}
	http := resty.New().
		SetHeader("User-Agent", opts.UserAgent)
	if opts.Timeout > 0 {
		http.SetTimeout(opts.Timeout)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{http: http, limiter: limiter, opts: opts}
}

// get waits for the limiter, performs a GET and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, url string, query map[string]string, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		SetQueryParams(query).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	if resp.StatusCode() != 200 {
		body := resp.Body()
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, fmt.Errorf("%s: HTTP %d: %s", url, resp.StatusCode(), strings.TrimSpace(string(body)))
	}
	return resp.Body(), nil
}

func joinIDs(ids []int32) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(int64(id), 10))
	}
	return b.String()
}
