package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	grpcapi "github.com/Konseptt/ai-lecture-notes/internal/api/grpc"
	"github.com/Konseptt/ai-lecture-notes/internal/app"
	"github.com/Konseptt/ai-lecture-notes/internal/auth"
	"github.com/Konseptt/ai-lecture-notes/internal/config"
	"github.com/Konseptt/ai-lecture-notes/internal/events"
	apphttp "github.com/Konseptt/ai-lecture-notes/internal/http"
	"github.com/Konseptt/ai-lecture-notes/internal/observability"
	"github.com/Konseptt/ai-lecture-notes/internal/schema"
	"github.com/Konseptt/ai-lecture-notes/internal/service/completion"
	"github.com/Konseptt/ai-lecture-notes/internal/service/notes"
	"github.com/Konseptt/ai-lecture-notes/internal/service/ratelimit"
	"github.com/Konseptt/ai-lecture-notes/internal/service/relay"
	"github.com/Konseptt/ai-lecture-notes/internal/service/stt"
	"github.com/Konseptt/ai-lecture-notes/internal/service/stt/deepgram"
	googlestt "github.com/Konseptt/ai-lecture-notes/internal/service/stt/google"
	"github.com/Konseptt/ai-lecture-notes/internal/service/stt/mock"
	"github.com/Konseptt/ai-lecture-notes/internal/store"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer db.Close()

	// Kafka publisher for final transcripts and generated documents
	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicDocument:   cfg.Kafka.TopicDocument,
		Principal:       cfg.Kafka.Principal,
	})
	defer publisher.Close()

	provider, err := newTranscriptionProvider(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Transcription.Provider).Msg("Failed to create transcription provider")
	}

	completer, completerReady := newCompleter(ctx, cfg)
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		SweepInterval:     cfg.RateLimit.SweepInterval,
		IdleTTL:           cfg.RateLimit.IdleTTL,
	})
	go limiter.Run(ctx)

	router := apphttp.NewRouter(apphttp.Deps{
		BaseContext:   ctx,
		Store:         db,
		Tokens:        tokens,
		Passwords:     auth.NewHasher(cfg.Auth.BcryptCost),
		Google:        auth.NewIDTokenVerifier(cfg.Auth.GoogleClientID),
		Documents:     notes.New(completer, publisher, cfg.Completion.MaxInputChars),
		Relay:         relay.New(relay.DefaultConfig(), provider, tokens, publisher),
		Limiter:       limiter,
		Validator:     schema.New(),
		AudioDir:      cfg.Audio.Dir,
		MaxAudioBytes: cfg.Audio.MaxBytes,
		StaticDir:     cfg.Service.StaticDir,
		CORSOrigins:   cfg.Service.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	obsServer := observability.NewServer(cfg.Service.MetricsAddr, db.Ping)
	obsServer.Start()

	admin := grpcapi.New(map[string]grpcapi.Check{
		grpcapi.ServiceTranscription: func(context.Context) error {
			if !provider.Configured() {
				return stt.ErrNotConfigured
			}
			return nil
		},
		grpcapi.ServiceCompletion: func(context.Context) error {
			if !completerReady {
				return completion.ErrNotConfigured
			}
			return nil
		},
		grpcapi.ServiceStore: db.Ping,
	})
	go admin.Run(ctx, 15*time.Second)

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen for admin gRPC")
	}
	go func() {
		if err := admin.Serve(lis); err != nil {
			log.Error().Err(err).Msg("Admin gRPC server error")
		}
	}()

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Lecture notes API started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	admin.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown error")
	}
	if closer, ok := provider.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("Transcription provider close error")
		}
	}
	application.Shutdown()
}

func openStore(ctx context.Context, cfg *config.Configuration) (store.Store, error) {
	if cfg.Database.URL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
		return store.NewMemory(), nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return store.NewPostgres(connectCtx, cfg.Database.URL)
}

func newTranscriptionProvider(ctx context.Context, cfg *config.Configuration) (stt.Provider, error) {
	tc := cfg.Transcription
	switch tc.Provider {
	case "google":
		return googlestt.New(ctx, googlestt.Config{
			LanguageCode:   tc.GoogleLanguageCode,
			SampleRateHz:   tc.GoogleSampleRateHz,
			InterimResults: tc.InterimResults,
			AudioEncoding:  tc.GoogleAudioEncoding,
		})
	case "mock":
		return mock.New(), nil
	case "deepgram", "":
		dc := deepgram.DefaultConfig()
		dc.APIKey = tc.DeepgramAPIKey
		dc.URL = tc.DeepgramURL
		dc.Model = tc.Model
		dc.Language = tc.Language
		dc.Punctuate = tc.Punctuate
		dc.InterimResults = tc.InterimResults
		dc.UtteranceEndMs = tc.UtteranceEndMs
		dc.FillerWords = tc.FillerWords
		dc.SmartFormat = tc.SmartFormat
		return deepgram.New(dc), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", tc.Provider)
	}
}

// unconfigured answers every completion with ErrNotConfigured so the AI routes report a
// clear error instead of the process refusing to start.
type unconfigured struct{}

func (unconfigured) Complete(context.Context, string, string) (string, error) {
	return "", completion.ErrNotConfigured
}

func newCompleter(ctx context.Context, cfg *config.Configuration) (completion.Completer, bool) {
	cc := cfg.Completion
	base := completion.Config{
		MaxInputChars: cc.MaxInputChars,
		MaxAttempts:   cc.MaxAttempts,
		BaseBackoff:   cc.BaseBackoff,
		Timeout:       cc.Timeout,
	}

	if cc.Provider == "gemini" {
		base.APIKey = cc.GeminiAPIKey
		base.Model = cc.GeminiModel
		c, err := completion.NewGeminiClient(ctx, base)
		if err != nil {
			log.Warn().Err(err).Msg("Gemini completion backend unavailable")
			return unconfigured{}, false
		}
		return c, true
	}

	if cc.APIKey == "" {
		log.Warn().Msg("GITHUB_TOKEN not set, AI endpoints will return 503")
	}
	base.APIKey = cc.APIKey
	base.Endpoint = cc.Endpoint
	base.Model = cc.Model
	return completion.NewClient(base), cc.APIKey != ""
}
