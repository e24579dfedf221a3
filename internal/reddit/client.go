package reddit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reddit-agent/internal/config"
	"github.com/reddit-agent/pkg/logger"
	"github.com/reddit-agent/pkg/ratelimit"
)

const (
	defaultAPIBase = "https://oauth.reddit.com"
	defaultWebBase = "https://www.reddit.com"
)

// TransportError is a network or timeout failure talking to Reddit. It
// produces the same item state as a platform rejection but is logged
// distinctly for alerting.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("reddit %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client handles Reddit API requests
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
	userAgent   string

	// Overridable in tests
	APIBase string
	WebBase string
}

// NewClient creates a new Reddit API client
func NewClient(cfg config.RedditConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: limiter,
		log:         log.WithComponent("reddit"),
		userAgent:   cfg.UserAgent,
		APIBase:     defaultAPIBase,
		WebBase:     defaultWebBase,
	}
}

// do performs an authenticated request against the OAuth API host
func (c *Client) do(ctx context.Context, method, path, token, limiterName string, form url.Values) (*http.Response, error) {
	// Wait for rate limiter
	if err := c.rateLimiter.Wait(ctx, limiterName); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var body io.Reader
	if method == http.MethodPost && form != nil {
		body = strings.NewReader(form.Encode())
	}

	reqURL := c.APIBase + path
	if method == http.MethodGet && form != nil {
		reqURL += "?" + form.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Msg("Making Reddit API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Msg("Reddit API response")

	return resp, nil
}

// PostURL turns a permalink into the canonical public URL. Reddit
// responses carry either a full URL or a site-relative path.
func (c *Client) PostURL(permalink string) string {
	if strings.HasPrefix(permalink, "/") {
		return c.WebBase + permalink
	}
	return permalink
}
