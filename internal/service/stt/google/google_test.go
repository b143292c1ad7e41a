package google

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/Konseptt/ai-lecture-notes/internal/service/stt"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 48000 {
		t.Errorf("expected default sample rate 48000, got %d", cfg.SampleRateHz)
	}
	if !cfg.InterimResults {
		t.Error("expected default interim results true")
	}
	if cfg.AudioEncoding != "WEBM_OPUS" {
		t.Errorf("expected default encoding 'WEBM_OPUS', got %s", cfg.AudioEncoding)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"webm_opus", speechpb.RecognitionConfig_LINEAR16},
		{"invalid", speechpb.RecognitionConfig_LINEAR16},
		{"", speechpb.RecognitionConfig_LINEAR16},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseAudioEncoding(tt.input); got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

type fakeRecognizeStream struct {
	sent      []*speechpb.StreamingRecognizeRequest
	responses []*speechpb.StreamingRecognizeResponse
	closeSent bool
}

func (f *fakeRecognizeStream) Send(r *speechpb.StreamingRecognizeRequest) error {
	f.sent = append(f.sent, r)
	return nil
}

func (f *fakeRecognizeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	if len(f.responses) == 0 {
		return nil, io.EOF
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

func (f *fakeRecognizeStream) CloseSend() error {
	f.closeSent = true
	return nil
}

func result(text string, final bool, wordStart, end time.Duration) *speechpb.StreamingRecognitionResult {
	alt := &speechpb.SpeechRecognitionAlternative{Transcript: text}
	if wordStart >= 0 {
		alt.Words = []*speechpb.WordInfo{{StartTime: durationpb.New(wordStart)}}
	}
	return &speechpb.StreamingRecognitionResult{
		Alternatives:  []*speechpb.SpeechRecognitionAlternative{alt},
		IsFinal:       final,
		ResultEndTime: durationpb.New(end),
	}
}

func TestProvider_OpenSendRecv(t *testing.T) {
	fake := &fakeRecognizeStream{
		responses: []*speechpb.StreamingRecognizeResponse{
			{Results: []*speechpb.StreamingRecognitionResult{result("hello", false, -1, time.Second)}},
			{Results: []*speechpb.StreamingRecognitionResult{result("hello world", true, 500*time.Millisecond, 2*time.Second)}},
			{Results: []*speechpb.StreamingRecognitionResult{result("next", false, -1, 3*time.Second)}},
			{},
		},
	}
	p := &Provider{
		cfg:  DefaultConfig(),
		open: func(context.Context) (recognizeStream, error) { return fake, nil },
	}

	s, err := p.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if len(fake.sent) != 1 || fake.sent[0].GetStreamingConfig() == nil {
		t.Fatalf("expected streaming config as the first request, got %v", fake.sent)
	}
	cfg := fake.sent[0].GetStreamingConfig()
	if cfg.GetConfig().GetEncoding() != speechpb.RecognitionConfig_WEBM_OPUS || !cfg.GetInterimResults() {
		t.Errorf("unexpected streaming config %v", cfg)
	}

	if err := s.Send([]byte{9, 9}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(fake.sent[1].GetAudioContent()) != string([]byte{9, 9}) {
		t.Error("audio not forwarded verbatim")
	}

	r, _ := s.Recv()
	if r.Outcome != stt.OutcomeTranscript || r.Event.IsFinal || r.Event.Start != 0 {
		t.Errorf("unexpected interim result %+v", r)
	}
	r, _ = s.Recv()
	if !r.Event.IsFinal || !r.Event.SpeechFinal || r.Event.Start != 0.5 {
		t.Errorf("unexpected final result %+v", r)
	}
	r, _ = s.Recv()
	if r.Event.Start != 2 {
		t.Errorf("expected interim start at previous final end, got %v", r.Event.Start)
	}
	r, err = s.Recv()
	if err != nil || r.Outcome != stt.OutcomeSkip {
		t.Errorf("expected skip for empty response, got %+v, %v", r, err)
	}
	if _, err := s.Recv(); !errors.Is(err, stt.ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed at EOF, got %v", err)
	}

	if err := s.CloseSend(); err != nil || !fake.closeSent {
		t.Errorf("expected CloseSend to reach the stream, got %v", err)
	}
	if err := s.Send([]byte{1}); !errors.Is(err, stt.ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed after CloseSend, got %v", err)
	}
}

func TestProvider_OpenFailure(t *testing.T) {
	p := &Provider{
		cfg:  DefaultConfig(),
		open: func(context.Context) (recognizeStream, error) { return nil, errors.New("unavailable") },
	}
	if _, err := p.Open(context.Background()); err == nil {
		t.Error("expected error from Open")
	}
}

func TestProvider_NotConfigured(t *testing.T) {
	p := &Provider{}
	if _, err := p.Open(context.Background()); !errors.Is(err, stt.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
