package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Konseptt/ai-lecture-notes/internal/observability/metrics"
)

const providerGitHub = "github"

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
	Model       string        `json:"model"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient returns a Client. Each attempt uses its own connection.
func NewClient(cfg Config) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = true

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		sleep:   sleepCtx,
		metrics: metrics.DefaultMetrics,
		logger: log.With().
			Str("component", "completion").
			Str("provider", providerGitHub).
			Str("model", cfg.Model).
			Logger(),
	}
}

// Complete sends the prompt pair and returns the first choice's content.
// Only 429 responses are retried; transport failures and timeouts fail immediately.
func (c *Client) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}
	start := time.Now()

	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: Truncate(userContent, c.cfg.MaxInputChars)},
		},
		Temperature: Temperature,
		TopP:        TopP,
		MaxTokens:   MaxTokens,
		Model:       c.cfg.Model,
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	text, err := c.attempts(ctx, body)
	reason := ""
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		reason = upErr.Reason()
	} else if err != nil {
		reason = "internal"
	}
	c.metrics.RecordCompletion(providerGitHub, err, reason, time.Since(start).Seconds())
	return text, err
}

func (c *Client) attempts(ctx context.Context, body []byte) (string, error) {
	url := strings.TrimRight(c.cfg.Endpoint, "/") + "/chat/completions"

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		status, respBody, err := c.post(ctx, url, body)
		c.metrics.RecordCompletionAttempt(providerGitHub, status)
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Completion request failed")
			return "", &UpstreamError{Detail: truncateDetail(err.Error())}
		}

		if status == http.StatusOK {
			var resp chatResponse
			if err := json.Unmarshal(respBody, &resp); err != nil || len(resp.Choices) == 0 {
				return "", &UpstreamError{StatusCode: status, Detail: "malformed completion response"}
			}
			c.logger.Debug().Int("attempt", attempt+1).Msg("Completion succeeded")
			return resp.Choices[0].Message.Content, nil
		}

		last := attempt == c.cfg.MaxAttempts-1
		if status == http.StatusTooManyRequests && !last {
			wait := Backoff(c.cfg.BaseBackoff, attempt)
			c.logger.Warn().
				Int("attempt", attempt+1).
				Dur("backoff", wait).
				Msg("Completion throttled, backing off")
			if err := c.sleep(ctx, wait); err != nil {
				return "", err
			}
			continue
		}

		upErr := &UpstreamError{
			StatusCode: status,
			Detail:     errorDetail(respBody),
			Throttled:  status == http.StatusTooManyRequests,
			Exhausted:  status == http.StatusTooManyRequests,
		}
		c.logger.Error().
			Int("status", status).
			Int("attempt", attempt+1).
			Str("detail", upErr.Detail).
			Msg("Completion upstream error")
		return "", upErr
	}
	// Unreachable with MaxAttempts >= 1.
	return "", &UpstreamError{StatusCode: http.StatusTooManyRequests, Throttled: true, Exhausted: true, Detail: "max retries exceeded"}
}

func (c *Client) post(ctx context.Context, url string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, b, nil
}

// errorDetail prefers error.message from a JSON body, else the start of the raw body.
func errorDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Message != "" {
		return truncateDetail(eb.Error.Message)
	}
	return truncateDetail(string(body))
}
