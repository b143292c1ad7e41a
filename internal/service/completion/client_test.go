package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSleeper struct {
	waits []time.Duration
}

func (f *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	f.waits = append(f.waits, d)
	return ctx.Err()
}

func testConfig(endpoint string) Config {
	return Config{
		APIKey:        "test-key",
		Endpoint:      endpoint,
		Model:         "test-model",
		MaxInputChars: 150_000,
		MaxAttempts:   5,
		BaseBackoff:   5 * time.Second,
		Timeout:       5 * time.Second,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeSleeper) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(testConfig(srv.URL))
	fs := &fakeSleeper{}
	c.sleep = fs.sleep
	return c, fs
}

func writeChoice(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}

func TestClient_Complete_Success(t *testing.T) {
	var got chatRequest
	var auth, path string
	c, fs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		writeChoice(w, "hello")
	})

	text, err := c.Complete(context.Background(), "system prompt", "lecture text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello" {
		t.Errorf("expected 'hello', got %q", text)
	}
	if auth != "Bearer test-key" {
		t.Errorf("unexpected Authorization header %q", auth)
	}
	if path != "/chat/completions" {
		t.Errorf("unexpected path %q", path)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "lecture text" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
	if got.Temperature != 0.7 || got.TopP != 1.0 || got.MaxTokens != 4096 || got.Model != "test-model" {
		t.Errorf("unexpected generation params %+v", got)
	}
	if len(fs.waits) != 0 {
		t.Errorf("expected no backoff, got %v", fs.waits)
	}
}

func TestClient_Complete_RetriesThrottledThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c, fs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeChoice(w, "ok")
	})

	text, err := c.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ok" {
		t.Errorf("expected 'ok', got %q", text)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if len(fs.waits) != len(want) || fs.waits[0] != want[0] || fs.waits[1] != want[1] {
		t.Errorf("expected backoff %v, got %v", want, fs.waits)
	}
}

func TestClient_Complete_ThrottledExhausted(t *testing.T) {
	var calls atomic.Int32
	c, fs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	})

	_, err := c.Complete(context.Background(), "s", "u")

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if upErr.StatusCode != 429 || !upErr.Exhausted || !upErr.Throttled {
		t.Errorf("unexpected error %+v", upErr)
	}
	if upErr.Detail != "Rate limit reached" {
		t.Errorf("unexpected detail %q", upErr.Detail)
	}
	if calls.Load() != 5 {
		t.Errorf("expected 5 attempts, got %d", calls.Load())
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second}
	if len(fs.waits) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), fs.waits)
	}
	for i := range want {
		if fs.waits[i] != want[i] {
			t.Errorf("wait %d: expected %v, got %v", i, want[i], fs.waits[i])
		}
	}
}

func TestClient_Complete_NonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	longBody := strings.Repeat("x", 500)
	c, fs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(longBody))
	})

	_, err := c.Complete(context.Background(), "s", "u")

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if upErr.StatusCode != 500 || upErr.Throttled {
		t.Errorf("unexpected error %+v", upErr)
	}
	if len(upErr.Detail) != 300 {
		t.Errorf("expected detail truncated to 300 chars, got %d", len(upErr.Detail))
	}
	if calls.Load() != 1 || len(fs.waits) != 0 {
		t.Errorf("expected a single attempt without backoff, got %d calls and %v", calls.Load(), fs.waits)
	}
}

func TestClient_Complete_TransportErrorNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(testConfig(url))
	fs := &fakeSleeper{}
	c.sleep = fs.sleep

	_, err := c.Complete(context.Background(), "s", "u")

	var upErr *UpstreamError
	if !errors.As(err, &upErr) || upErr.StatusCode != 0 {
		t.Fatalf("expected transport UpstreamError, got %v", err)
	}
	if upErr.Reason() != "transport" {
		t.Errorf("expected reason 'transport', got %s", upErr.Reason())
	}
	if len(fs.waits) != 0 {
		t.Errorf("expected no retries, got %v", fs.waits)
	}
}

func TestClient_Complete_TruncatesInput(t *testing.T) {
	var got chatRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		writeChoice(w, "ok")
	})
	c.cfg.MaxInputChars = 10

	if _, err := c.Complete(context.Background(), "s", strings.Repeat("é", 25)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Messages[1].Content != strings.Repeat("é", 10) {
		t.Errorf("expected 10 characters, got %q", got.Messages[1].Content)
	}
}

func TestClient_Complete_NotConfigured(t *testing.T) {
	c := NewClient(Config{Endpoint: "http://unused"})

	if _, err := c.Complete(context.Background(), "s", "u"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestClient_Complete_BackoffHonoursCancellation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c.sleep = sleepCtx
	c.cfg.BaseBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, "s", "u")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"hello", 0, "hello"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestUpstreamError_Reason(t *testing.T) {
	tests := []struct {
		err  *UpstreamError
		want string
	}{
		{&UpstreamError{StatusCode: 0}, "transport"},
		{&UpstreamError{StatusCode: 429, Throttled: true}, "rate_limited"},
		{&UpstreamError{StatusCode: 401}, "auth"},
		{&UpstreamError{StatusCode: 403}, "auth"},
		{&UpstreamError{StatusCode: 500}, "upstream"},
	}
	for _, tt := range tests {
		if got := tt.err.Reason(); got != tt.want {
			t.Errorf("Reason(%d) = %s, want %s", tt.err.StatusCode, got, tt.want)
		}
	}
}
