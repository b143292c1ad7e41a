package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Konseptt/ai-lecture-notes/internal/service/stt"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantSkip  bool
		wantText  string
		wantStart float64
		wantFinal bool
	}{
		{
			name:      "results with words",
			in:        `{"type":"Results","start":1.0,"is_final":true,"speech_final":false,"channel":{"alternatives":[{"transcript":"hello","words":[{"start":1.5}]}]}}`,
			wantText:  "hello",
			wantStart: 1.5,
			wantFinal: true,
		},
		{
			name:      "results without words",
			in:        `{"type":"Results","start":2.25,"channel":{"alternatives":[{"transcript":"hi there"}]}}`,
			wantText:  "hi there",
			wantStart: 2.25,
		},
		{name: "empty transcript", in: `{"type":"Results","channel":{"alternatives":[{"transcript":""}]}}`, wantSkip: true},
		{name: "no alternatives", in: `{"type":"Results","channel":{"alternatives":[]}}`, wantSkip: true},
		{name: "no channel", in: `{"type":"Results"}`, wantSkip: true},
		{name: "metadata", in: `{"type":"Metadata","request_id":"x"}`, wantSkip: true},
		{name: "utterance end", in: `{"type":"UtteranceEnd","last_word_end":3.1}`, wantSkip: true},
		{name: "malformed", in: `{"type":`, wantSkip: true},
		{name: "wrong shape", in: `{"type":"Results","channel":{"alternatives":"nope"}}`, wantSkip: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseEnvelope([]byte(tt.in))
			if tt.wantSkip {
				if r.Outcome != stt.OutcomeSkip {
					t.Errorf("expected skip, got %+v", r)
				}
				return
			}
			if r.Outcome != stt.OutcomeTranscript {
				t.Fatalf("expected transcript, got skip")
			}
			ev := r.Event
			if ev.Type != "transcript" || ev.Text != tt.wantText || ev.Start != tt.wantStart || ev.IsFinal != tt.wantFinal {
				t.Errorf("unexpected event %+v", ev)
			}
		})
	}
}

func TestProvider_ListenURL(t *testing.T) {
	p := New(DefaultConfig())

	raw, err := p.ListenURL()
	if err != nil {
		t.Fatalf("ListenURL failed: %v", err)
	}
	u, _ := url.Parse(raw)
	want := map[string]string{
		"model":            "nova-3",
		"language":         "en",
		"punctuate":        "true",
		"interim_results":  "true",
		"utterance_end_ms": "1000",
		"filler_words":     "true",
		"smart_format":     "false",
	}
	for k, v := range want {
		if got := u.Query().Get(k); got != v {
			t.Errorf("param %s = %q, want %q", k, got, v)
		}
	}
	if u.Host != "api.deepgram.com" || u.Path != "/v1/listen" {
		t.Errorf("unexpected base url %s", raw)
	}
}

func TestProvider_NotConfigured(t *testing.T) {
	p := New(DefaultConfig())
	if p.Configured() {
		t.Fatal("expected unconfigured provider without API key")
	}
	if _, err := p.Open(context.Background()); !errors.Is(err, stt.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestStream_RoundTrip(t *testing.T) {
	var upgrader websocket.Upgrader
	gotAuth := make(chan string, 1)
	gotAudio := make(chan []byte, 1)
	gotClose := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, audio, err := conn.ReadMessage()
		if err != nil {
			return
		}
		gotAudio <- audio

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello","words":[{"start":0.5}]}]}}`))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		gotClose <- string(msg)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.ReadMessage()
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "dg-key"
	cfg.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	p := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := p.Open(ctx)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if auth := <-gotAuth; auth != "Token dg-key" {
		t.Errorf("unexpected Authorization header %q", auth)
	}

	if err := s.Send([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if audio := <-gotAudio; string(audio) != string([]byte{1, 2, 3}) {
		t.Errorf("audio not forwarded verbatim: %v", audio)
	}

	r, err := s.Recv()
	if err != nil || r.Outcome != stt.OutcomeSkip {
		t.Fatalf("expected skip for metadata, got %+v, %v", r, err)
	}
	r, err = s.Recv()
	if err != nil || r.Outcome != stt.OutcomeTranscript || r.Event.Text != "hello" || r.Event.Start != 0.5 {
		t.Fatalf("expected transcript, got %+v, %v", r, err)
	}

	if err := s.CloseSend(); err != nil {
		t.Fatalf("CloseSend failed: %v", err)
	}
	if msg := <-gotClose; msg != `{"type":"CloseStream"}` {
		t.Errorf("unexpected close message %q", msg)
	}
	if err := s.Send([]byte{4}); !errors.Is(err, stt.ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed after CloseSend, got %v", err)
	}

	if _, err := s.Recv(); !errors.Is(err, stt.ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed on normal closure, got %v", err)
	}
}
