// Package http exposes the lecture notes REST API, the transcription WebSocket and the
// single-page frontend.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Konseptt/ai-lecture-notes/internal/auth"
	"github.com/Konseptt/ai-lecture-notes/internal/observability/logging"
	"github.com/Konseptt/ai-lecture-notes/internal/observability/metrics"
	"github.com/Konseptt/ai-lecture-notes/internal/schema"
	"github.com/Konseptt/ai-lecture-notes/internal/service/relay"
	"github.com/Konseptt/ai-lecture-notes/internal/store"
)

// TokenService issues and validates session tokens.
type TokenService interface {
	Issue(subject string) (string, error)
	Validate(token string) (string, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// DocumentGenerator produces AI summary and notes documents.
type DocumentGenerator interface {
	Summarize(ctx context.Context, subject, transcript string) (schema.SummaryDocument, error)
	GenerateNotes(ctx context.Context, subject, transcript string) (schema.NotesDocument, error)
}

// TranscriptionRelay serves one upgraded transcription connection.
type TranscriptionRelay interface {
	Serve(ctx context.Context, conn relay.ClientConn, token string) *relay.Session
}

// RateLimiter decides whether an identity may make another request.
type RateLimiter interface {
	Allow(key string) bool
}

// Deps holds everything the router needs. Limiter and Google may be nil.
type Deps struct {
	// BaseContext outlives individual requests and is cancelled on shutdown.
	BaseContext context.Context

	Store     store.Store
	Tokens    TokenService
	Passwords PasswordHasher
	Google    auth.GoogleVerifier
	Documents DocumentGenerator
	Relay     TranscriptionRelay
	Limiter   RateLimiter
	Validator *schema.Validator

	AudioDir      string
	MaxAudioBytes int64
	StaticDir     string
	CORSOrigins   []string
}

type server struct {
	Deps
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(d Deps) http.Handler {
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}
	if d.Validator == nil {
		d.Validator = schema.New()
	}
	s := &server{
		Deps: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 8 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("http"),
	}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/ws/transcribe", s.transcribe)
		r.Get("/audio/{id}", s.downloadAudio)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit("auth"))
			r.Post("/auth/signup", s.signup)
			r.Post("/auth/login", s.login)
			r.Post("/auth/google", s.googleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/auth/me", s.me)

			r.Route("/lectures", func(r chi.Router) {
				r.Get("/", s.listLectures)
				r.Post("/", s.createLecture)
				r.Get("/{id}", s.getLecture)
				r.Put("/{id}", s.updateLecture)
				r.Delete("/{id}", s.deleteLecture)
			})
			r.Post("/audio/{id}", s.uploadAudio)

			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit("ai"))
				r.Post("/summarize", s.summarize)
				r.Post("/notes", s.notes)
			})
		})

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "Not Found")
		})
	})

	if d.StaticDir != "" {
		r.Get("/*", s.spa)
	}

	return r
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
