// Package deepgram streams audio to Deepgram's live transcription WebSocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Konseptt/ai-lecture-notes/internal/models"
	"github.com/Konseptt/ai-lecture-notes/internal/service/stt"
)

// Config holds Deepgram connection and recognition settings.
type Config struct {
	APIKey         string
	URL            string
	Model          string
	Language       string
	Punctuate      bool
	InterimResults bool
	UtteranceEndMs int
	FillerWords    bool
	SmartFormat    bool
	DialTimeout    time.Duration
}

// DefaultConfig returns the settings lecture capture uses.
func DefaultConfig() Config {
	return Config{
		URL:            "wss://api.deepgram.com/v1/listen",
		Model:          "nova-3",
		Language:       "en",
		Punctuate:      true,
		InterimResults: true,
		UtteranceEndMs: 1000,
		FillerWords:    true,
		SmartFormat:    false,
		DialTimeout:    10 * time.Second,
	}
}

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

// Provider implements stt.Provider for Deepgram.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

// New creates a Deepgram provider.
func New(cfg Config) *Provider {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Provider{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "deepgram" }

// Configured implements stt.Provider.
func (p *Provider) Configured() bool { return p.cfg.APIKey != "" }

// ListenURL returns the upstream URL with the fixed recognition parameters.
func (p *Provider) ListenURL() (string, error) {
	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse deepgram url: %w", err)
	}
	q := u.Query()
	q.Set("model", p.cfg.Model)
	q.Set("language", p.cfg.Language)
	q.Set("punctuate", strconv.FormatBool(p.cfg.Punctuate))
	q.Set("interim_results", strconv.FormatBool(p.cfg.InterimResults))
	q.Set("utterance_end_ms", strconv.Itoa(p.cfg.UtteranceEndMs))
	q.Set("filler_words", strconv.FormatBool(p.cfg.FillerWords))
	q.Set("smart_format", strconv.FormatBool(p.cfg.SmartFormat))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open dials Deepgram with token authentication.
func (p *Provider) Open(ctx context.Context) (stt.Stream, error) {
	if !p.Configured() {
		return nil, stt.ErrNotConfigured
	}
	listenURL, err := p.ListenURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, resp, err := p.dialer.DialContext(ctx, listenURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial deepgram: %w (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("dial deepgram: %w", err)
	}

	log.Debug().
		Str("component", "deepgram").
		Str("model", p.cfg.Model).
		Msg("Deepgram stream opened")

	return &stream{conn: conn}, nil
}

type stream struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeSent bool

	closeOnce sync.Once
	closeErr  error
}

func (s *stream) Send(audio []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closeSent {
		return stt.ErrStreamClosed
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, audio)
}

func (s *stream) CloseSend() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closeSent {
		return nil
	}
	s.closeSent = true
	return s.conn.WriteMessage(websocket.TextMessage, closeStreamMessage)
}

func (s *stream) Recv() (stt.Result, error) {
	msgType, data, err := s.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
			return stt.Skip, stt.ErrStreamClosed
		}
		return stt.Skip, fmt.Errorf("read deepgram: %w", err)
	}
	if msgType != websocket.TextMessage {
		return stt.Skip, nil
	}
	return ParseEnvelope(data), nil
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

type envelope struct {
	Type        string  `json:"type"`
	Start       float64 `json:"start"`
	IsFinal     bool    `json:"is_final"`
	SpeechFinal bool    `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
			Words      []struct {
				Start float64 `json:"start"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// ParseEnvelope interprets one Deepgram message. Only "Results" messages whose first
// alternative has non-empty text produce a transcript; everything else is skipped.
func ParseEnvelope(data []byte) stt.Result {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return stt.Skip
	}
	if env.Type != "Results" || len(env.Channel.Alternatives) == 0 {
		return stt.Skip
	}
	alt := env.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return stt.Skip
	}
	start := env.Start
	if len(alt.Words) > 0 {
		start = alt.Words[0].Start
	}
	return stt.Transcript(models.NewTranscriptEvent(alt.Transcript, env.IsFinal, env.SpeechFinal, start))
}
