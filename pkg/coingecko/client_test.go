package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// delayRecorder replaces the client's sleep so retry tests never wait.
type delayRecorder struct {
	delays []time.Duration
}

func (r *delayRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestClient(baseURL string, rec *delayRecorder, opts ...ClientOption) *Client {
	c := NewClient(baseURL, opts...)
	c.sleep = rec.sleep
	return c
}

// go test -v --run TestNewClientDefaults
func TestNewClientDefaults(t *testing.T) {
	c := NewClient("")
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL=%q want %q", c.baseURL, DefaultBaseURL)
	}
	if c.maxRetries != 3 {
		t.Errorf("maxRetries=%d want 3", c.maxRetries)
	}
	if c.baseDelay != time.Second {
		t.Errorf("baseDelay=%v want 1s", c.baseDelay)
	}

	c = NewClient("http://example.test", WithRetries(0, 10*time.Millisecond), WithTimeout(5*time.Second))
	if c.maxRetries != 1 {
		t.Errorf("maxRetries=%d want clamp to 1", c.maxRetries)
	}
	if c.httpClient.Timeout != 5*time.Second {
		t.Errorf("timeout=%v want 5s", c.httpClient.Timeout)
	}
}

// go test -v --run TestFetchRateLimitThenSuccess
func TestFetchRateLimitThenSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	rec := &delayRecorder{}
	c := newTestClient(server.URL, rec)

	body, err := c.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body=%s", body)
	}
	if calls.Load() != 2 {
		t.Errorf("calls=%d want 2", calls.Load())
	}
	if len(rec.delays) != 1 || rec.delays[0] != time.Second {
		t.Errorf("delays=%v want [1s]", rec.delays)
	}
}

// go test -v --run TestFetchRateLimitBackoffGrows
func TestFetchRateLimitBackoffGrows(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	rec := &delayRecorder{}
	c := newTestClient(server.URL, rec)

	if _, err := c.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays=%v want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("delay[%d]=%v want %v", i, rec.delays[i], want[i])
		}
	}
}

// go test -v --run TestFetchOnlyRateLimited
func TestFetchOnlyRateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	rec := &delayRecorder{}
	c := newTestClient(server.URL, rec)

	_, err := c.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err=%v want ErrRetriesExhausted", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls=%d want 3", calls.Load())
	}
	// every 429 delays, including the last one
	if len(rec.delays) != 3 || rec.delays[2] != 4*time.Second {
		t.Errorf("delays=%v want [1s 2s 4s]", rec.delays)
	}
}

// go test -v --run TestFetchServerErrorsExhaustBudget
func TestFetchServerErrorsExhaustBudget(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	rec := &delayRecorder{}
	c := newTestClient(server.URL, rec)

	_, err := c.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("err=%v want ErrRetriesExhausted", err)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("err=%v want wrapped StatusError 500", err)
	}

	var retryErr *RetryError
	if !errors.As(err, &retryErr) || retryErr.Attempts != 3 {
		t.Errorf("err=%v want RetryError with 3 attempts", err)
	}

	if calls.Load() != 3 {
		t.Errorf("calls=%d want 3", calls.Load())
	}
	// no delay after the final attempt
	if len(rec.delays) != 2 {
		t.Errorf("delays=%v want 2 entries", rec.delays)
	}
}

// go test -v --run TestFetchSingleAttemptErrorIsNotTerminal
func TestFetchSingleAttemptErrorIsNotTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	_, err := c.do(context.Background(), server.URL)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("err=%v want StatusError 404", err)
	}
	if errors.Is(err, ErrRetriesExhausted) {
		t.Error("single attempt error must not match ErrRetriesExhausted")
	}
}

// go test -v --run TestFetchNetworkError
func TestFetchNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	rec := &delayRecorder{}
	c := newTestClient(endpoint, rec, WithRetries(2, 50*time.Millisecond))

	_, err := c.Fetch(context.Background(), endpoint)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err=%v want ErrRetriesExhausted", err)
	}
	if len(rec.delays) != 1 || rec.delays[0] != 50*time.Millisecond {
		t.Errorf("delays=%v want [50ms]", rec.delays)
	}
}

// go test -v --run TestFetchContextCanceled
func TestFetchContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(server.URL)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	_, err := c.Fetch(ctx, server.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

// go test -v --run TestFetchSendsAPIKey
func TestFetchSendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-cg-demo-api-key"); got != "secret" {
			t.Errorf("api key header=%q", got)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, WithAPIKey("secret", false))
	if _, err := c.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
