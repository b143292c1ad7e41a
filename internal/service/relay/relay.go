// Package relay bridges one authenticated client WebSocket to one upstream streaming
// transcription session.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Konseptt/ai-lecture-notes/internal/models"
	"github.com/Konseptt/ai-lecture-notes/internal/observability/logging"
	"github.com/Konseptt/ai-lecture-notes/internal/observability/metrics"
	"github.com/Konseptt/ai-lecture-notes/internal/service/stt"
)

// CloseUnauthenticated is the close code sent for a missing or invalid token.
const CloseUnauthenticated = 4001

// Client-facing messages.
const (
	MessageMissingToken        = "Missing token"
	MessageInvalidToken        = "Invalid token"
	MessageFallback            = "Deepgram not configured, use browser speech"
	MessageUpstreamUnavailable = "Transcription service unavailable"
)

// Session outcomes, recorded in metrics and logs.
const (
	OutcomeAuthFailed          = "auth_failed"
	OutcomeFallback            = "fallback"
	OutcomeUpstreamUnavailable = "upstream_unavailable"
	OutcomeClientClosed        = "client_closed"
	OutcomeUpstreamClosed      = "upstream_closed"
	OutcomeShutdown            = "shutdown"
	OutcomeError               = "error"
)

var (
	errClientDone   = errors.New("client finished")
	errUpstreamDone = errors.New("upstream finished")
)

// ClientConn is the client side of the relay. *websocket.Conn satisfies it.
type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// TokenValidator resolves a bearer token to its subject.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// TranscriptPublisher receives final transcripts for downstream consumers.
type TranscriptPublisher interface {
	PublishTranscriptFinal(ctx context.Context, event models.TranscriptFinalEvent) error
}

// Config holds relay timing settings.
type Config struct {
	WriteTimeout time.Duration
	CloseTimeout time.Duration
}

// DefaultConfig returns production relay timings.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		CloseTimeout: time.Second,
	}
}

// Relay serves transcription sessions.
type Relay struct {
	cfg       Config
	provider  stt.Provider
	tokens    TokenValidator
	publisher TranscriptPublisher
	metrics   *metrics.Metrics
}

// New creates a Relay. publisher may be nil.
func New(cfg Config, provider stt.Provider, tokens TokenValidator, publisher TranscriptPublisher) *Relay {
	return &Relay{
		cfg:       cfg,
		provider:  provider,
		tokens:    tokens,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
	}
}

// Provider returns the upstream provider.
func (r *Relay) Provider() stt.Provider {
	return r.provider
}

// Serve runs one session to completion over an already-upgraded connection and returns
// it in its terminal state. conn is always closed before Serve returns.
func (r *Relay) Serve(ctx context.Context, conn ClientConn, token string) *Session {
	sess := NewSession(uuid.NewString())
	logger := logging.WithSession(sess.ID(), "")

	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debug().Err(err).Msg("Client close error")
		}
		r.metrics.RecordSessionOutcome(sess.Outcome())
		logger.Info().
			Str("subject", sess.Subject()).
			Str("state", sess.State().String()).
			Str("outcome", sess.Outcome()).
			Dur("age", sess.Age()).
			Msg("Relay session finished")
	}()

	if token == "" {
		r.reject(sess, conn, MessageMissingToken, logger)
		return sess
	}
	subject, err := r.tokens.Validate(token)
	if err != nil {
		r.reject(sess, conn, MessageInvalidToken, logger)
		return sess
	}
	sess.setSubject(subject)
	logger = logging.WithSession(sess.ID(), subject)

	if r.provider == nil || !r.provider.Configured() {
		r.send(conn, models.StatusEvent{Type: models.EventFallback, Message: MessageFallback}, logger)
		r.closeClient(conn, websocket.CloseNormalClosure, "", logger)
		r.transition(sess, StateClosed, logger)
		sess.setOutcome(OutcomeFallback)
		return sess
	}

	upstream, err := r.provider.Open(ctx)
	if err != nil {
		logger.Error().Err(err).Str("provider", r.provider.Name()).Msg("Failed to open upstream")
		r.transition(sess, StateUpstreamUnavailable, logger)
		sess.setOutcome(OutcomeUpstreamUnavailable)
		r.send(conn, models.StatusEvent{Type: models.EventError, Message: MessageUpstreamUnavailable}, logger)
		r.closeClient(conn, websocket.CloseNormalClosure, "", logger)
		r.transition(sess, StateClosed, logger)
		return sess
	}
	defer func() {
		if err := upstream.Close(); err != nil {
			logger.Debug().Err(err).Msg("Upstream close error")
		}
	}()

	r.transition(sess, StateReady, logger)
	if err := r.send(conn, models.StatusEvent{Type: models.EventReady}, logger); err != nil {
		r.transition(sess, StateClosing, logger)
		sess.setOutcome(OutcomeClientClosed)
		r.transition(sess, StateClosed, logger)
		return sess
	}

	r.transition(sess, StateStreaming, logger)
	r.metrics.RecordSessionStart()
	start := time.Now()
	logger.Info().Str("provider", r.provider.Name()).Msg("Relay session streaming")

	err = r.stream(ctx, sess, conn, upstream, logger)
	sess.setOutcome(outcomeFor(ctx, err))
	if sess.Outcome() == OutcomeError {
		logger.Warn().Err(err).Msg("Relay session ended with error")
	}

	r.closeClient(conn, websocket.CloseNormalClosure, "", logger)
	r.transition(sess, StateClosed, logger)
	r.metrics.RecordSessionStreamEnd(time.Since(start).Seconds())
	return sess
}

// stream runs both pumps until the first one finishes, then cancels the other and waits
// for it. Each pump returns a non-nil error so the group context is cancelled on first exit.
func (r *Relay) stream(ctx context.Context, sess *Session, conn ClientConn, upstream stt.Stream, logger zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.pumpClient(gctx, conn, upstream, logger)
	})
	g.Go(func() error {
		return r.pumpUpstream(gctx, ctx, sess, conn, upstream, logger)
	})

	// Unblock whichever pump is still parked in a read once the group is cancelled.
	unblocked := make(chan struct{})
	go func() {
		defer close(unblocked)
		<-gctx.Done()
		r.transition(sess, StateClosing, logger)
		if err := upstream.Close(); err != nil {
			logger.Debug().Err(err).Msg("Upstream close error")
		}
		if err := conn.SetReadDeadline(time.Now()); err != nil {
			logger.Debug().Err(err).Msg("Client read deadline error")
		}
	}()

	err := g.Wait()
	<-unblocked
	return err
}

// pumpClient forwards binary client frames upstream in order. On client close it asks the
// upstream to flush.
func (r *Relay) pumpClient(ctx context.Context, conn ClientConn, upstream stt.Stream, logger zerolog.Logger) error {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return errClientDone
			}
			if cerr := upstream.CloseSend(); cerr != nil {
				logger.Debug().Err(cerr).Msg("Upstream CloseSend error")
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				logger.Debug().Int("code", closeErr.Code).Msg("Client closed")
				return errClientDone
			}
			return fmt.Errorf("client read: %w", err)
		}

		if msgType != websocket.BinaryMessage {
			logger.Debug().Int("messageType", msgType).Msg("Ignoring non-binary client frame")
			continue
		}
		if err := upstream.Send(data); err != nil {
			if ctx.Err() != nil {
				return errClientDone
			}
			return fmt.Errorf("upstream send: %w", err)
		}
		r.metrics.RecordAudioForwarded(len(data))
	}
}

// pumpUpstream forwards transcript results to the client. It is the only client writer
// while streaming.
func (r *Relay) pumpUpstream(ctx, sessionCtx context.Context, sess *Session, conn ClientConn, upstream stt.Stream, logger zerolog.Logger) error {
	for {
		res, err := upstream.Recv()
		if err != nil {
			if errors.Is(err, stt.ErrStreamClosed) || ctx.Err() != nil {
				return errUpstreamDone
			}
			return fmt.Errorf("upstream recv: %w", err)
		}
		if res.Outcome != stt.OutcomeTranscript {
			r.metrics.RecordEnvelopeSkipped()
			continue
		}

		ev := res.Event
		if err := conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout)); err != nil {
			return fmt.Errorf("client write deadline: %w", err)
		}
		if err := conn.WriteJSON(ev); err != nil {
			return fmt.Errorf("client write: %w", err)
		}
		r.metrics.RecordTranscriptForwarded(ev.IsFinal)

		if ev.IsFinal && r.publisher != nil {
			err := r.publisher.PublishTranscriptFinal(sessionCtx, models.TranscriptFinalEvent{
				SessionID:   sess.ID(),
				Subject:     sess.Subject(),
				Text:        ev.Text,
				SpeechFinal: ev.SpeechFinal,
				Start:       ev.Start,
			})
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to publish final transcript")
			}
		}
	}
}

func (r *Relay) reject(sess *Session, conn ClientConn, reason string, logger zerolog.Logger) {
	logger.Info().Str("reason", reason).Msg("Rejecting relay session")
	r.transition(sess, StateAuthFailed, logger)
	sess.setOutcome(OutcomeAuthFailed)
	r.closeClient(conn, CloseUnauthenticated, reason, logger)
}

func (r *Relay) send(conn ClientConn, v any, logger zerolog.Logger) error {
	if err := conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout)); err != nil {
		logger.Debug().Err(err).Msg("Client write deadline error")
	}
	if err := conn.WriteJSON(v); err != nil {
		logger.Debug().Err(err).Msg("Client write error")
		return err
	}
	return nil
}

func (r *Relay) closeClient(conn ClientConn, code int, reason string, logger zerolog.Logger) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(r.cfg.CloseTimeout)); err != nil {
		logger.Debug().Err(err).Msg("Client close frame error")
	}
}

func (r *Relay) transition(sess *Session, next State, logger zerolog.Logger) {
	if err := sess.Transition(next); err != nil {
		logger.Error().Err(err).Msg("Session transition rejected")
	}
}

func outcomeFor(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return OutcomeShutdown
	case errors.Is(err, errClientDone):
		return OutcomeClientClosed
	case errors.Is(err, errUpstreamDone):
		return OutcomeUpstreamClosed
	default:
		return OutcomeError
	}
}
