package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// StatusError is a non-2xx reply from a provider API
type StatusError struct {
	StatusCode int
	Message    string        // Provider error message, or the raw body
	RetryAfter time.Duration // From the Retry-After header, if any
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed when repeated
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// jsonTransport posts JSON to a provider and decodes the JSON reply,
// retrying throttled and server-side failures with exponential backoff
type jsonTransport struct {
	client    *http.Client
	headers   map[string]string
	errorText func(body []byte) string // Extracts the provider's error message

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

func newJSONTransport(client *http.Client, headers map[string]string, errorText func([]byte) string) *jsonTransport {
	return &jsonTransport{
		client:    client,
		headers:   headers,
		errorText: errorText,
		attempts:  defaultRetryAttempts,
		baseDelay: defaultRetryBaseDelay,
		maxDelay:  defaultRetryMaxDelay,
	}
}

// post sends in to url and decodes the reply into out
func (t *jsonTransport) post(ctx context.Context, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	attempts := t.attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		respBody, err := t.do(ctx, http.MethodPost, url, body)
		if err == nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
			return nil
		}
		lastErr = err

		delay, retry := t.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	if attempts > 1 && isRetryable(lastErr) {
		return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
	}
	return lastErr
}

// get issues a single GET and discards the body
func (t *jsonTransport) get(ctx context.Context, url string) error {
	_, err := t.do(ctx, http.MethodGet, url, nil)
	return err
}

func (t *jsonTransport) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if t.errorText != nil {
			msg = t.errorText(respBody)
		}
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return respBody, nil
}

func (t *jsonTransport) retryDelay(ctx context.Context, err error, attempt, attempts int) (time.Duration, bool) {
	if attempt >= attempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if !statusErr.Retryable() {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return t.capDelay(statusErr.RetryAfter), true
		}
		return t.backoff(attempt), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return t.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles the base delay per attempt: base, 2*base, 4*base, ...
func (t *jsonTransport) backoff(attempt int) time.Duration {
	if t.baseDelay <= 0 {
		return 0
	}
	delay := t.baseDelay
	for i := 1; i < attempt; i++ {
		if delay > t.maxDelay/2 {
			return t.capDelay(t.maxDelay)
		}
		delay *= 2
	}
	return t.capDelay(delay)
}

func (t *jsonTransport) capDelay(delay time.Duration) time.Duration {
	if t.maxDelay > 0 && delay > t.maxDelay {
		return t.maxDelay
	}
	return delay
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
