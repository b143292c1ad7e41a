// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Configuration is the full process configuration.
type Configuration struct {
	Service       ServiceConfig
	Auth          AuthConfig
	Database      DatabaseConfig
	Transcription TranscriptionConfig
	Completion    CompletionConfig
	Kafka         KafkaConfig
	Audio         AudioConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener and deployment settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	GRPCPort    string
	MetricsAddr string
	Env         string
	StaticDir   string
	CORSOrigins []string
}

// AuthConfig holds token issuance and Google sign-in settings.
type AuthConfig struct {
	JWTSecret      string
	TokenTTL       time.Duration
	GoogleClientID string
	BcryptCost     int
}

// DatabaseConfig holds the Postgres DSN. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL string
}

// TranscriptionConfig selects and configures the upstream streaming provider.
type TranscriptionConfig struct {
	Provider string // deepgram, google, mock

	DeepgramAPIKey string
	DeepgramURL    string
	Model          string
	Language       string
	Punctuate      bool
	InterimResults bool
	UtteranceEndMs int
	FillerWords    bool
	SmartFormat    bool

	GoogleLanguageCode  string
	GoogleSampleRateHz  int
	GoogleAudioEncoding string
}

// CompletionConfig configures the LLM completion backend.
type CompletionConfig struct {
	Provider      string // github, gemini
	APIKey        string
	Endpoint      string
	Model         string
	GeminiAPIKey  string
	GeminiModel   string
	MaxInputChars int
	MaxAttempts   int
	BaseBackoff   time.Duration
	Timeout       time.Duration
}

// KafkaConfig configures the event publisher.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicTranscript string
	TopicDocument   string
	Principal       string
}

// AudioConfig configures recorded audio storage.
type AudioConfig struct {
	Dir      string
	MaxBytes int64
}

// RateLimitConfig configures edge rate limiting per identity.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	SweepInterval     time.Duration
	IdleTTL           time.Duration
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads .env (when present) and then the process environment.
func Load() *Configuration {
	_ = godotenv.Load()

	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-lecture-notes")

	return &Configuration{
		Service: ServiceConfig{
			Principal:   principal,
			HTTPPort:    envOrDefault("PORT", "8000"),
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
			Env:         envOrDefault("ENV", "prod"),
			StaticDir:   envOrDefault("STATIC_DIR", "frontend/dist"),
			CORSOrigins: envOrDefaultList("CORS_ORIGINS", []string{"*"}),
		},
		Auth: AuthConfig{
			JWTSecret:      envOrDefault("JWT_SECRET", "dev-secret-change-me"),
			TokenTTL:       time.Duration(envOrDefaultInt("JWT_EXPIRE_HOURS", 72)) * time.Hour,
			GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
			BcryptCost:     envOrDefaultInt("BCRYPT_COST", 10),
		},
		Database: DatabaseConfig{
			URL: normalizeDatabaseURL(os.Getenv("DATABASE_URL")),
		},
		Transcription: TranscriptionConfig{
			Provider:            envOrDefault("STT_PROVIDER", "deepgram"),
			DeepgramAPIKey:      os.Getenv("DEEPGRAM_API_KEY"),
			DeepgramURL:         envOrDefault("DEEPGRAM_WS_URL", "wss://api.deepgram.com/v1/listen"),
			Model:               envOrDefault("DEEPGRAM_MODEL", "nova-3"),
			Language:            envOrDefault("DEEPGRAM_LANGUAGE", "en"),
			Punctuate:           envOrDefaultBool("DEEPGRAM_PUNCTUATE", true),
			InterimResults:      envOrDefaultBool("DEEPGRAM_INTERIM_RESULTS", true),
			UtteranceEndMs:      envOrDefaultInt("DEEPGRAM_UTTERANCE_END_MS", 1000),
			FillerWords:         envOrDefaultBool("DEEPGRAM_FILLER_WORDS", true),
			SmartFormat:         envOrDefaultBool("DEEPGRAM_SMART_FORMAT", false),
			GoogleLanguageCode:  envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			GoogleSampleRateHz:  envOrDefaultInt("STT_SAMPLE_RATE_HZ", 48000),
			GoogleAudioEncoding: envOrDefault("STT_AUDIO_ENCODING", "WEBM_OPUS"),
		},
		Completion: CompletionConfig{
			Provider:      envOrDefault("COMPLETION_PROVIDER", "github"),
			APIKey:        os.Getenv("GITHUB_TOKEN"),
			Endpoint:      envOrDefault("COMPLETION_ENDPOINT", "https://models.github.ai/inference"),
			Model:         envOrDefault("COMPLETION_MODEL", "deepseek/DeepSeek-V3-0324"),
			GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
			GeminiModel:   envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
			MaxInputChars: envOrDefaultInt("COMPLETION_MAX_INPUT_CHARS", 150_000),
			MaxAttempts:   envOrDefaultInt("COMPLETION_MAX_ATTEMPTS", 5),
			BaseBackoff:   envOrDefaultDuration("COMPLETION_BASE_BACKOFF", 5*time.Second),
			Timeout:       envOrDefaultDuration("COMPLETION_TIMEOUT", 120*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envOrDefaultList("KAFKA_BROKERS", nil),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "lecture.transcript.final"),
			TopicDocument:   envOrDefault("KAFKA_TOPIC_DOCUMENT", "lecture.document.generated"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Audio: AudioConfig{
			Dir:      envOrDefault("AUDIO_DIR", "/data/audio"),
			MaxBytes: envOrDefaultInt64("AUDIO_MAX_BYTES", 500*1024*1024),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envOrDefaultInt("RATE_LIMIT_RPM", 30),
			Burst:             envOrDefaultInt("RATE_LIMIT_BURST", 10),
			SweepInterval:     envOrDefaultDuration("RATE_LIMIT_SWEEP_INTERVAL", time.Minute),
			IdleTTL:           envOrDefaultDuration("RATE_LIMIT_IDLE_TTL", 10*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

// normalizeDatabaseURL drops a SQLAlchemy driver suffix left over in older deployments.
func normalizeDatabaseURL(u string) string {
	if strings.HasPrefix(u, "postgresql+asyncpg://") {
		return "postgres://" + strings.TrimPrefix(u, "postgresql+asyncpg://")
	}
	return u
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
