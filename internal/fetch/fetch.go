package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Getter fetches the body of a URL. Implemented by Client; tests substitute
// fakes.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// Client is a plain HTTP fetcher with a browser-like user agent and simple
// retry. Storefronts frequently reject the default Go user agent.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	logger     *slog.Logger
}

func New(opts *Options, logger *slog.Logger) *Client {
	if opts == nil {
		opts = &Options{}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	retries := opts.MaxRetries
	if retries < 1 {
		retries = 3
	}

	return &Client{
		http:       &http.Client{Timeout: opts.Timeout},
		userAgent:  ua,
		maxRetries: retries,
		logger:     logger.With("component", "fetcher"),
	}
}

// Get fetches url, retrying transient failures and 5xx responses.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		body, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		c.logger.Warn("fetch failed", "url", url, "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}

// GetJSON fetches url and decodes the response body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
