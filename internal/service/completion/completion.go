// Package completion calls chat-completion backends with a bounded retry policy.
package completion

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Generation parameters sent with every request.
const (
	Temperature = 0.7
	TopP        = 1.0
	MaxTokens   = 4096
)

const maxDetailChars = 300

// ErrNotConfigured is returned when no API key was supplied.
var ErrNotConfigured = errors.New("completion backend not configured")

// Completer produces the assistant text for a system prompt and user content.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// Config holds backend-independent completion settings.
type Config struct {
	APIKey        string
	Endpoint      string
	Model         string
	MaxInputChars int
	MaxAttempts   int
	BaseBackoff   time.Duration
	Timeout       time.Duration
}

// UpstreamError reports a failed completion. StatusCode is 0 for transport failures.
type UpstreamError struct {
	StatusCode int
	Detail     string
	Throttled  bool
	Exhausted  bool
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("completion upstream unreachable: %s", e.Detail)
	}
	if e.Exhausted {
		return fmt.Sprintf("completion upstream %d after retries: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("completion upstream %d: %s", e.StatusCode, e.Detail)
}

// Reason classifies the error for metrics and client-facing messages.
func (e *UpstreamError) Reason() string {
	switch {
	case e.StatusCode == 0:
		return "transport"
	case e.Throttled:
		return "rate_limited"
	case e.StatusCode == 401 || e.StatusCode == 403:
		return "auth"
	default:
		return "upstream"
	}
}

// Truncate keeps at most max characters of s. max <= 0 disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Backoff returns the wait before the attempt following attempt (0-based): base * 2^attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	return base << attempt
}

func truncateDetail(s string) string {
	return Truncate(s, maxDetailChars)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
