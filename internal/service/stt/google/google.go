// Package google provides a Google Cloud Speech-to-Text streaming provider.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"

	"github.com/Konseptt/ai-lecture-notes/internal/models"
	"github.com/Konseptt/ai-lecture-notes/internal/service/stt"
)

// Config holds Google STT configuration.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
}

// DefaultConfig returns settings matching browser MediaRecorder output.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   48000,
		InterimResults: true,
		AudioEncoding:  "WEBM_OPUS",
	}
}

// parseAudioEncoding converts a string to a Google audio encoding. Unknown values fall
// back to LINEAR16.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// recognizeStream is the subset of the streaming client the provider uses.
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// Provider implements stt.Provider. One speech client is shared; each Open starts an
// independent StreamingRecognize call.
type Provider struct {
	cfg    Config
	client *speech.Client
	open   func(ctx context.Context) (recognizeStream, error)
}

// New creates a Google provider.
// Requires GOOGLE_APPLICATION_CREDENTIALS or ambient credentials.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	p := &Provider{cfg: cfg, client: c}
	p.open = func(ctx context.Context) (recognizeStream, error) {
		return c.StreamingRecognize(ctx)
	}
	return p, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "google" }

// Configured implements stt.Provider.
func (p *Provider) Configured() bool { return p.open != nil }

// Open starts a streaming recognition call and sends the initial config.
func (p *Provider) Open(ctx context.Context) (stt.Stream, error) {
	if !p.Configured() {
		return nil, stt.ErrNotConfigured
	}
	ctx, cancel := context.WithCancel(ctx)

	rs, err := p.open(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start streaming recognize: %w", err)
	}

	err = rs.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: p.streamingConfig(),
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	log.Debug().
		Str("component", "google-stt").
		Str("languageCode", p.cfg.LanguageCode).
		Int("sampleRateHz", p.cfg.SampleRateHz).
		Msg("Google stream opened")

	return &stream{rs: rs, cancel: cancel}, nil
}

func (p *Provider) streamingConfig() *speechpb.StreamingRecognitionConfig {
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(p.cfg.AudioEncoding),
			SampleRateHertz:            int32(p.cfg.SampleRateHz),
			LanguageCode:               p.cfg.LanguageCode,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
		},
		InterimResults: p.cfg.InterimResults,
	}
}

// Close releases the shared speech client.
func (p *Provider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

type stream struct {
	rs     recognizeStream
	cancel context.CancelFunc

	mu        sync.Mutex
	closeSent bool

	// lastFinalEnd is the end offset of the previous final result, used as the start of
	// interim results that carry no word timings.
	lastFinalEnd float64
}

func (s *stream) Send(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeSent {
		return stt.ErrStreamClosed
	}
	return s.rs.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

func (s *stream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeSent {
		return nil
	}
	s.closeSent = true
	return s.rs.CloseSend()
}

func (s *stream) Recv() (stt.Result, error) {
	resp, err := s.rs.Recv()
	if errors.Is(err, io.EOF) {
		return stt.Skip, stt.ErrStreamClosed
	}
	if err != nil {
		return stt.Skip, fmt.Errorf("recv google stt: %w", err)
	}
	return s.interpret(resp), nil
}

// interpret maps the first result with a non-empty alternative to a transcript event.
func (s *stream) interpret(resp *speechpb.StreamingRecognizeResponse) stt.Result {
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 || alts[0].GetTranscript() == "" {
			continue
		}
		alt := alts[0]

		start := s.lastFinalEnd
		if words := alt.GetWords(); len(words) > 0 && words[0].GetStartTime() != nil {
			start = words[0].GetStartTime().AsDuration().Seconds()
		}
		if r.GetIsFinal() && r.GetResultEndTime() != nil {
			s.lastFinalEnd = r.GetResultEndTime().AsDuration().Seconds()
		}
		return stt.Transcript(models.NewTranscriptEvent(alt.GetTranscript(), r.GetIsFinal(), r.GetIsFinal(), start))
	}
	return stt.Skip
}

func (s *stream) Close() error {
	s.cancel()
	return nil
}
