package coingecko

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pricecollector/internal/metrics"

	"go.uber.org/zap"
)

// ErrRetriesExhausted is matched by every error returned after the retry budget is spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError is a non-2xx response from the upstream API.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coingecko http error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// RetryError wraps the last attempt's error once the retry budget is spent.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetriesExhausted, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}

// Client talks to the CoinGecko REST API with retry and exponential backoff.
type Client struct {
	baseURL    string
	apiKey     string
	keyHeader  string
	httpClient *http.Client
	logger     *zap.Logger

	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for the given base URL (DefaultBaseURL when empty).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		sleep:      sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetries sets the attempt budget and the base backoff delay.
func WithRetries(max int, baseDelay time.Duration) ClientOption {
	return func(c *Client) {
		if max < 1 {
			max = 1
		}
		c.maxRetries = max
		c.baseDelay = baseDelay
	}
}

// WithAPIKey sends the key on every request. pro selects the paid-plan header.
func WithAPIKey(key string, pro bool) ClientOption {
	return func(c *Client) {
		c.apiKey = key
		c.keyHeader = demoKeyHeader
		if pro {
			c.keyHeader = proKeyHeader
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Fetch GETs the URL and returns the response body.
//
// A 429 waits baseDelay*2^attempt and tries again. Any other failure (transport error or
// non-2xx status) waits the same way, except on the last attempt where it is returned at once.
func (c *Client) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		delay := c.baseDelay * time.Duration(1<<uint(attempt))

		body, err := c.do(ctx, endpoint)
		if err == nil {
			metrics.RecordUpstream(metrics.UpstreamOK)
			return body, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			metrics.RecordUpstream(metrics.UpstreamRateLimited)
			c.logger.Warn("rate limit hit, backing off",
				zap.Duration("delay", delay),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", c.maxRetries),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		if statusErr != nil {
			metrics.RecordUpstream(metrics.UpstreamHTTPError)
		} else {
			metrics.RecordUpstream(metrics.UpstreamNetworkError)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if attempt == c.maxRetries-1 {
			return nil, &RetryError{Attempts: attempt + 1, Err: err}
		}

		c.logger.Warn("request failed, retrying",
			zap.Error(err),
			zap.Duration("delay", delay),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.maxRetries),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &RetryError{Attempts: c.maxRetries, Err: lastErr}
}

// do performs a single GET attempt.
func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.keyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
