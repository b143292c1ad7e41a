package events

import (
	"context"
	"testing"

	"github.com/Konseptt/ai-lecture-notes/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.Enabled() {
				t.Error("expected publisher to be disabled")
			}
			if p.writerTranscript != nil || p.writerDocument != nil {
				t.Error("expected nil writers when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Enabled:         false,
		Brokers:         []string{"localhost:9092"},
		TopicTranscript: "test.transcript",
		TopicDocument:   "test.document",
		Principal:       "test-principal",
	})

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicTranscript != "test.transcript" {
		t.Errorf("expected transcript topic 'test.transcript', got %s", p.topicTranscript)
	}
	if p.topicDocument != "test.document" {
		t.Errorf("expected document topic 'test.document', got %s", p.topicDocument)
	}
}

func TestNew_EnabledCreatesAsyncWriters(t *testing.T) {
	p := New(&Config{
		Enabled:         true,
		Brokers:         []string{"localhost:9092"},
		TopicTranscript: "t.transcript",
		TopicDocument:   "t.document",
	})
	defer p.Close()

	if !p.Enabled() {
		t.Fatal("expected publisher enabled")
	}
	if p.writerTranscript.Topic != "t.transcript" || !p.writerTranscript.Async {
		t.Errorf("unexpected transcript writer: topic=%s async=%v", p.writerTranscript.Topic, p.writerTranscript.Async)
	}
	if p.writerDocument.Topic != "t.document" || !p.writerDocument.Async {
		t.Errorf("unexpected document writer: topic=%s async=%v", p.writerDocument.Topic, p.writerDocument.Async)
	}
}

func TestPublisher_PublishTranscriptFinal_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicTranscript: "test.transcript", Principal: "test-svc"})

	err := p.PublishTranscriptFinal(context.Background(), models.TranscriptFinalEvent{
		SessionID: "sess-1",
		Subject:   "user-1",
		Text:      "hello world",
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishDocument_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicDocument: "test.document"})

	err := p.PublishDocument(context.Background(), models.DocumentGeneratedEvent{
		Subject:    "user-1",
		Kind:       "summary",
		InputChars: 42,
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Publish_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.publish(context.Background(), nil, "t", "x", "key", make(chan int))
	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_ZeroValue(t *testing.T) {
	p := &Publisher{}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
