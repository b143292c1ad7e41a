package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/Konseptt/ai-lecture-notes/internal/observability/metrics"
)

const providerGemini = "gemini"

type generateFunc func(ctx context.Context, systemPrompt, userContent string) (string, error)

// GeminiClient calls the Gemini API with the same retry contract as Client.
type GeminiClient struct {
	cfg      Config
	generate generateFunc
	sleep    func(ctx context.Context, d time.Duration) error
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewGeminiClient creates a Gemini backend. cfg.Model names the Gemini model.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	g := &GeminiClient{
		cfg:     cfg,
		sleep:   sleepCtx,
		metrics: metrics.DefaultMetrics,
		logger: log.With().
			Str("component", "completion").
			Str("provider", providerGemini).
			Str("model", cfg.Model).
			Logger(),
	}
	g.generate = func(ctx context.Context, systemPrompt, userContent string) (string, error) {
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		resp, err := client.Models.GenerateContent(ctx, cfg.Model, genai.Text(userContent), &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr[float32](Temperature),
			TopP:              genai.Ptr[float32](TopP),
			MaxOutputTokens:   MaxTokens,
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return g, nil
}

// Complete implements Completer.
func (g *GeminiClient) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	start := time.Now()
	userContent = Truncate(userContent, g.cfg.MaxInputChars)

	text, err := g.attempts(ctx, systemPrompt, userContent)
	reason := ""
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		reason = upErr.Reason()
	} else if err != nil {
		reason = "internal"
	}
	g.metrics.RecordCompletion(providerGemini, err, reason, time.Since(start).Seconds())
	return text, err
}

func (g *GeminiClient) attempts(ctx context.Context, systemPrompt, userContent string) (string, error) {
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		text, err := g.generate(ctx, systemPrompt, userContent)
		if err == nil {
			g.metrics.RecordCompletionAttempt(providerGemini, http.StatusOK)
			return text, nil
		}

		code, detail := apiErrorCode(err)
		g.metrics.RecordCompletionAttempt(providerGemini, code)

		last := attempt == g.cfg.MaxAttempts-1
		if code == http.StatusTooManyRequests && !last {
			wait := Backoff(g.cfg.BaseBackoff, attempt)
			g.logger.Warn().
				Int("attempt", attempt+1).
				Dur("backoff", wait).
				Msg("Gemini throttled, backing off")
			if err := g.sleep(ctx, wait); err != nil {
				return "", err
			}
			continue
		}

		g.logger.Error().
			Err(err).
			Int("status", code).
			Int("attempt", attempt+1).
			Msg("Gemini completion failed")
		return "", &UpstreamError{
			StatusCode: code,
			Detail:     truncateDetail(detail),
			Throttled:  code == http.StatusTooManyRequests,
			Exhausted:  code == http.StatusTooManyRequests,
		}
	}
	return "", &UpstreamError{StatusCode: http.StatusTooManyRequests, Throttled: true, Exhausted: true, Detail: "max retries exceeded"}
}

// apiErrorCode extracts the HTTP code of a Gemini API error; 0 means the call never
// produced a response.
func apiErrorCode(err error) (int, string) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message
	}
	return 0, err.Error()
}
