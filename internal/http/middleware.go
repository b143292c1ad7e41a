package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Konseptt/ai-lecture-notes/internal/observability/logging"
	"github.com/Konseptt/ai-lecture-notes/internal/store"
)

type userKey struct{}

// requestLogger logs and records metrics for every request once the handler returns.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.RecordHTTPRequest(route, r.Method, status, elapsed.Seconds())

		logger := logging.WithRequest(middleware.GetReqID(r.Context()), r.Method, r.URL.Path)
		evt := logger.Info()
		if status >= http.StatusInternalServerError {
			evt = logger.Error()
		}
		evt.Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Msg("HTTP request")
	})
}

// authenticate resolves the bearer token to a stored user.
func (s *server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		user, status, detail := s.userForToken(r.Context(), token)
		if status != 0 {
			writeError(w, status, detail)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func (s *server) userForToken(ctx context.Context, token string) (store.User, int, string) {
	subject, err := s.Tokens.Validate(token)
	if err != nil {
		return store.User{}, http.StatusUnauthorized, "Invalid token"
	}
	user, err := s.Store.UserByID(ctx, subject)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, http.StatusUnauthorized, "User not found"
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load user")
		return store.User{}, http.StatusInternalServerError, "Internal server error"
	}
	return user, 0, ""
}

// rateLimit rejects requests once the caller's bucket is empty. The caller is the
// authenticated user when known, otherwise the client IP.
func (s *server) rateLimit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := "ip:" + clientIP(r)
			if user, ok := currentUser(r.Context()); ok {
				key = "user:" + user.ID
			}
			if !s.Limiter.Allow(key) {
				s.metrics.RecordRateLimited(scope)
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func currentUser(ctx context.Context) (store.User, bool) {
	u, ok := ctx.Value(userKey{}).(store.User)
	return u, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
