package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestTransport() *jsonTransport {
	t := newJSONTransport(http.DefaultClient, map[string]string{"x-test": "yes"}, ollamaErrorText)
	t.baseDelay = 0
	return t
}

func TestJSONTransport_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-test") != "yes" {
			t.Errorf("Expected custom header, got %q", r.Header.Get("x-test"))
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": "loading model"}`))
			return
		}
		_, _ = w.Write([]byte(`{"response": "ok"}`))
	}))
	defer server.Close()

	var out generateResponse
	if err := newTestTransport().post(context.Background(), server.URL, map[string]string{"a": "b"}, &out); err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if out.Response != "ok" {
		t.Errorf("Expected response ok, got %q", out.Response)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 calls, got %d", got)
	}
}

func TestJSONTransport_GivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "slow down"}`))
	}))
	defer server.Close()

	var out generateResponse
	err := newTestTransport().post(context.Background(), server.URL, struct{}{}, &out)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || statusErr.Message != "slow down" {
		t.Errorf("Unexpected status error: %+v", statusErr)
	}
	if got := calls.Load(); got != defaultRetryAttempts {
		t.Errorf("Expected %d calls, got %d", defaultRetryAttempts, got)
	}
}

func TestJSONTransport_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("plain failure"))
	}))
	defer server.Close()

	var out generateResponse
	err := newTestTransport().post(context.Background(), server.URL, struct{}{}, &out)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.Message != "plain failure" {
		t.Errorf("Expected raw body as message, got %q", statusErr.Message)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}
}

func TestJSONTransport_StopsOnCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	transport := newTestTransport()
	transport.baseDelay = time.Hour
	transport.maxDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out generateResponse
	err := transport.post(ctx, server.URL, struct{}{}, &out)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestJSONTransport_Backoff(t *testing.T) {
	transport := &jsonTransport{baseDelay: time.Second, maxDelay: 5 * time.Second}

	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, want := range expected {
		if got := transport.backoff(i + 1); got != want {
			t.Errorf("backoff(%d) = %v, want %v", i+1, got, want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-1", 0},
		{"soon", 0},
		{"Mon, 01 Jan 2001 00:00:00 GMT", 0},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.value); got != tt.expected {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.expected)
		}
	}

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > time.Minute {
		t.Errorf("parseRetryAfter(future) = %v, want within a minute", got)
	}
}
