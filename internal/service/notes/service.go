// Package notes turns lecture transcripts into summary and notes documents.
package notes

import (
	"context"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Konseptt/ai-lecture-notes/internal/models"
	"github.com/Konseptt/ai-lecture-notes/internal/observability/metrics"
	"github.com/Konseptt/ai-lecture-notes/internal/schema"
	"github.com/Konseptt/ai-lecture-notes/internal/service/completion"
)

// DocumentPublisher receives a notice for each generated document.
type DocumentPublisher interface {
	PublishDocument(ctx context.Context, event models.DocumentGeneratedEvent) error
}

// Service generates documents through a completion backend.
type Service struct {
	completer     completion.Completer
	publisher     DocumentPublisher
	maxInputChars int
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

// New creates a Service. publisher may be nil.
func New(completer completion.Completer, publisher DocumentPublisher, maxInputChars int) *Service {
	return &Service{
		completer:     completer,
		publisher:     publisher,
		maxInputChars: maxInputChars,
		metrics:       metrics.DefaultMetrics,
		logger:        log.With().Str("component", "notes").Logger(),
	}
}

// Summarize produces a SummaryDocument for transcript on behalf of subject.
func (s *Service) Summarize(ctx context.Context, subject, transcript string) (schema.SummaryDocument, error) {
	raw, inputChars, err := s.complete(ctx, SummarizePrompt, transcript)
	if err != nil {
		return schema.SummaryDocument{}, err
	}
	doc, fellBack := schema.NormalizeSummary(raw)
	s.record(ctx, subject, schema.KindSummary, fellBack, inputChars)
	return doc, nil
}

// GenerateNotes produces a NotesDocument for transcript on behalf of subject.
func (s *Service) GenerateNotes(ctx context.Context, subject, transcript string) (schema.NotesDocument, error) {
	raw, inputChars, err := s.complete(ctx, NotesPrompt, transcript)
	if err != nil {
		return schema.NotesDocument{}, err
	}
	doc, fellBack := schema.NormalizeNotes(raw)
	s.record(ctx, subject, schema.KindNotes, fellBack, inputChars)
	return doc, nil
}

func (s *Service) complete(ctx context.Context, prompt, transcript string) (string, int, error) {
	transcript = completion.Truncate(transcript, s.maxInputChars)
	raw, err := s.completer.Complete(ctx, prompt, transcript)
	return raw, utf8.RuneCountInString(transcript), err
}

func (s *Service) record(ctx context.Context, subject string, kind schema.Kind, fellBack bool, inputChars int) {
	s.metrics.RecordDocument(string(kind), fellBack)
	if fellBack {
		s.logger.Warn().
			Str("subject", subject).
			Str("kind", string(kind)).
			Msg("Completion output was not valid JSON, using fallback document")
	}
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishDocument(ctx, models.DocumentGeneratedEvent{
		Subject:    subject,
		Kind:       string(kind),
		Fallback:   fellBack,
		InputChars: inputChars,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish document event")
	}
}
