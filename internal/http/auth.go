package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Konseptt/ai-lecture-notes/internal/schema"
	"github.com/Konseptt/ai-lecture-notes/internal/store"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	Credential string `json:"credential"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  store.User `json:"user"`
}

func (s *server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := normalizeEmail(req.Email)
	if err := s.Validator.Signup(email, req.Password); err != nil {
		writeValidationError(w, err)
		return
	}

	if _, err := s.Store.UserByEmail(r.Context(), email); err == nil {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		s.internalError(w, err, "Failed to look up user")
		return
	}

	hash, err := s.Passwords.Hash(req.Password)
	if err != nil {
		s.internalError(w, err, "Failed to hash password")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = localPart(email)
	}

	user, err := s.Store.CreateUser(r.Context(), store.User{Email: email, PasswordHash: hash, Name: name})
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		s.internalError(w, err, "Failed to create user")
		return
	}
	s.logger.Info().Str("userId", user.ID).Msg("User signed up")
	s.respondWithToken(w, user)
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.Store.UserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.internalError(w, err, "Failed to look up user")
		return
	}
	if err != nil || user.PasswordHash == "" || s.Passwords.Verify(user.PasswordHash, req.Password) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.respondWithToken(w, user)
}

func (s *server) googleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if s.Google == nil {
		writeError(w, http.StatusUnauthorized, "Invalid Google token")
		return
	}
	identity, err := s.Google.Verify(r.Context(), req.Credential)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Google token rejected")
		writeError(w, http.StatusUnauthorized, "Invalid Google token")
		return
	}
	email := normalizeEmail(identity.Email)
	name := identity.Name
	if name == "" {
		name = localPart(email)
	}

	ctx := r.Context()
	user, err := s.Store.UserByGoogleID(ctx, identity.Subject)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		user, err = s.Store.UserByEmail(ctx, email)
		switch {
		case err == nil:
			user, err = s.Store.LinkGoogleID(ctx, user.ID, identity.Subject, name)
		case errors.Is(err, store.ErrNotFound):
			user, err = s.Store.CreateUser(ctx, store.User{Email: email, Name: name, GoogleID: identity.Subject})
		}
		if err != nil {
			s.internalError(w, err, "Failed to sign in with Google")
			return
		}
	default:
		s.internalError(w, err, "Failed to look up user")
		return
	}
	s.respondWithToken(w, user)
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	writeJSON(w, http.StatusOK, user)
}

func (s *server) respondWithToken(w http.ResponseWriter, user store.User) {
	token, err := s.Tokens.Issue(user.ID)
	if err != nil {
		s.internalError(w, err, "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *server) internalError(w http.ResponseWriter, err error, msg string) {
	s.logger.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeValidationError(w http.ResponseWriter, err error) {
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func localPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
