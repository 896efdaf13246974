// Package notify delivers completion events to an external webhook.
// The production deployment posts to the profile backend so it can attach
// the trimmed media to the creator's account.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Static errors for webhook operations.
var (
	// ErrURLRequired is returned when the webhook URL is not provided.
	ErrURLRequired = errors.New("notify: webhook URL is required")
	// ErrServerError is returned when the webhook returns a 5xx status code.
	ErrServerError = errors.New("notify: server error")
	// ErrRateLimited is returned when the webhook returns a 429 status code.
	ErrRateLimited = errors.New("notify: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("notify: request failed")
)

// Event describes a completed render.
type Event struct {
	SessionID       string    `json:"session_id"`
	Kind            string    `json:"kind"`
	ResultURL       string    `json:"result_url"`
	DurationSeconds float64   `json:"duration_seconds"`
	RenderedAt      time.Time `json:"rendered_at"`
}

// Notifier delivers completion events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// WebhookClient posts events as JSON to a fixed URL with exponential
// backoff retry on transient failures.
type WebhookClient struct {
	url         string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures a WebhookClient.
type ClientOption func(*WebhookClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(wc *WebhookClient) {
		wc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(wc *WebhookClient) {
		wc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(wc *WebhookClient) {
		wc.baseBackoff = d
	}
}

// NewWebhookClient creates a webhook notifier posting to url.
func NewWebhookClient(url string, opts ...ClientOption) (*WebhookClient, error) {
	if url == "" {
		return nil, ErrURLRequired
	}

	c := &WebhookClient{
		url:         url,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Notify posts the event, retrying transient failures.
func (c *WebhookClient) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	return c.doRequestWithRetry(ctx, body)
}

// doRequestWithRetry performs the POST with exponential backoff retry.
func (c *WebhookClient) doRequestWithRetry(ctx context.Context, body []byte) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("notify: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := c.doRequest(ctx, body)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("notify: max retries exceeded: %w", lastErr)
}

// doRequest performs a single POST.
func (c *WebhookClient) doRequest(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("notify: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("notify: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 5xx errors are retryable
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		// 429 (rate limit) is retryable
		if resp.StatusCode == 429 {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// NopNotifier discards events, for deployments without a webhook.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Event) error { return nil }

var (
	_ Notifier = (*WebhookClient)(nil)
	_ Notifier = NopNotifier{}
)
