package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/Konseptt/ai-lecture-notes/internal/service/completion"
)

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

func (s *server) summarize(w http.ResponseWriter, r *http.Request) {
	subject, transcript, ok := s.transcriptRequest(w, r)
	if !ok {
		return
	}
	doc, err := s.Documents.Summarize(r.Context(), subject, transcript)
	if err != nil {
		s.completionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) notes(w http.ResponseWriter, r *http.Request) {
	subject, transcript, ok := s.transcriptRequest(w, r)
	if !ok {
		return
	}
	doc, err := s.Documents.GenerateNotes(r.Context(), subject, transcript)
	if err != nil {
		s.completionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) transcriptRequest(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	user, _ := currentUser(r.Context())
	var req transcriptRequest
	if !decodeJSON(w, r, &req) {
		return "", "", false
	}
	if err := s.Validator.Transcript(req.Transcript); err != nil {
		writeError(w, http.StatusBadRequest, "Transcript is empty")
		return "", "", false
	}
	return user.ID, req.Transcript, true
}

// completionError logs the full upstream failure and returns a sanitized message.
func (s *server) completionError(w http.ResponseWriter, err error) {
	var upstream *completion.UpstreamError
	switch {
	case errors.As(err, &upstream):
		s.logger.Error().
			Err(err).
			Int("upstreamStatus", upstream.StatusCode).
			Str("reason", upstream.Reason()).
			Msg("Completion failed")
		writeError(w, http.StatusBadGateway, upstreamMessage(upstream.Reason()))
	case errors.Is(err, completion.ErrNotConfigured):
		s.logger.Error().Err(err).Msg("Completion backend not configured")
		writeError(w, http.StatusServiceUnavailable, "AI service is not configured")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn().Err(err).Msg("Completion cancelled")
		writeError(w, http.StatusBadGateway, upstreamMessage("transport"))
	default:
		s.internalError(w, err, "Completion failed")
	}
}

func upstreamMessage(reason string) string {
	switch reason {
	case "rate_limited":
		return "Rate limit reached. Please wait a moment and try again."
	case "auth":
		return "AI service authentication failed. Please contact the administrator."
	default:
		return "AI service is temporarily unavailable. Please try again."
	}
}
