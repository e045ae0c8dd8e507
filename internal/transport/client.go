package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// Options tunes the default client.
type Options struct {
	Timeout      time.Duration
	Attempts     uint
	RetryDelay   time.Duration
	RatePerHost  float64 // requests per second, 0 disables limiting
	Burst        int
	UserAgent    string
	MaxBodyBytes int64
	MaxRedirects int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		Attempts:     3,
		RetryDelay:   500 * time.Millisecond,
		RatePerHost:  2,
		Burst:        2,
		UserAgent:    defaultUserAgent,
		MaxBodyBytes: 10 << 20,
		MaxRedirects: 10,
	}
}

// Client is the default Doer built on net/http.
type Client struct {
	opts      Options
	transport http.RoundTripper
	log       *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a client. Zero option fields take their defaults.
func NewClient(opts Options, log *slog.Logger) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Attempts == 0 {
		opts.Attempts = def.Attempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.Burst <= 0 {
		opts.Burst = max(int(opts.RatePerHost), 1)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = def.MaxBodyBytes
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = def.MaxRedirects
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		opts:      opts,
		transport: http.DefaultTransport,
		log:       log.With("component", "transport"),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Do executes req, retrying network errors and 5xx answers. Every failure
// wraps ErrUnavailable.
func (c *Client) Do(ctx context.Context, jar http.CookieJar, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, req.URL, err)
	}

	httpClient := &http.Client{
		Jar:       jar,
		Timeout:   c.opts.Timeout,
		Transport: c.transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= c.opts.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}

	start := time.Now()
	attempt := 0
	resp, err := retry.DoWithData(
		func() (*Response, error) {
			attempt++
			if err := c.wait(ctx, target.Host); err != nil {
				return nil, retry.Unrecoverable(err)
			}
			return c.once(ctx, httpClient, req)
		},
		retry.Context(ctx),
		retry.Attempts(c.opts.Attempts),
		retry.Delay(c.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug("retrying request", "url", req.URL, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		c.log.Debug("request failed", "method", req.Method, "url", req.URL, "attempts", attempt, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, req.Method, req.URL, err)
	}

	c.log.Debug("request complete", "method", req.Method, "url", req.URL, "final_url", resp.URL,
		"status", resp.Status, "bytes", len(resp.Body), "duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

func (c *Client) once(ctx context.Context, httpClient *http.Client, req Request) (*Response, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL}
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		reader = resp.Body
	}
	body, err := io.ReadAll(io.LimitReader(reader, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		Status: resp.StatusCode,
		Body:   body,
		URL:    resp.Request.URL.String(),
	}, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	target := req.URL
	if len(req.Form) > 0 {
		if req.Method == http.MethodPost {
			body = strings.NewReader(req.Form.Encode())
		} else {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + req.Form.Encode()
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.Referer != "" {
		httpReq.Header.Set("Referer", req.Referer)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	}
	if httpReq.Header.Get("Accept-Language") == "" {
		httpReq.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")
	}
	return httpReq, nil
}

// wait blocks on the per-host limiter.
func (c *Client) wait(ctx context.Context, host string) error {
	if c.opts.RatePerHost <= 0 {
		return nil
	}
	c.mu.Lock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.opts.RatePerHost), c.opts.Burst)
		c.limiters[host] = lim
	}
	c.mu.Unlock()
	return lim.Wait(ctx)
}

func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
