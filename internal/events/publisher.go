// Package events publishes lecture events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/Konseptt/ai-lecture-notes/internal/models"
	"github.com/Konseptt/ai-lecture-notes/internal/observability/metrics"
)

// Publisher writes final transcripts and generated-document notices to separate topics.
// Writers are asynchronous so a slow broker never stalls a relay session.
type Publisher struct {
	writerTranscript *kafka.Writer
	writerDocument   *kafka.Writer
	principal        string
	topicTranscript  string
	topicDocument    string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicTranscript string
	TopicDocument   string
	Principal       string
	Enabled         bool
}

// New creates a publisher. A nil or disabled config yields a log-only publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicTranscript: cfg.TopicTranscript,
			topicDocument:   cfg.TopicDocument,
			metrics:         m,
		}
	}

	// Longer dial timeout for DNS resolution inside Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p := &Publisher{
		principal:       cfg.Principal,
		topicTranscript: cfg.TopicTranscript,
		topicDocument:   cfg.TopicDocument,
		enabled:         true,
		metrics:         m,
	}
	p.writerTranscript = p.newWriter(cfg.Brokers, cfg.TopicTranscript, models.EventTypeTranscriptFinal, transport)
	p.writerDocument = p.newWriter(cfg.Brokers, cfg.TopicDocument, models.EventTypeDocumentGenerated, transport)

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscript", cfg.TopicTranscript).
		Str("topicDocument", cfg.TopicDocument).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func (p *Publisher) newWriter(brokers []string, topic, eventType string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Transport:    transport,
		Completion: func(messages []kafka.Message, err error) {
			for range messages {
				p.metrics.RecordKafkaPublish(topic, eventType, err, 0)
			}
			if err != nil {
				log.Error().
					Err(err).
					Str("topic", topic).
					Int("messages", len(messages)).
					Msg("Failed to write to Kafka")
			}
		},
	}
}

// Enabled reports whether events reach a broker.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishTranscriptFinal publishes a final transcript keyed by session id.
func (p *Publisher) PublishTranscriptFinal(ctx context.Context, event models.TranscriptFinalEvent) error {
	if event.EventType == "" {
		event.EventType = models.EventTypeTranscriptFinal
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	return p.publish(ctx, p.writerTranscript, p.topicTranscript, event.EventType, event.SessionID, event)
}

// PublishDocument publishes a generated-document notice keyed by subject.
func (p *Publisher) PublishDocument(ctx context.Context, event models.DocumentGeneratedEvent) error {
	if event.EventType == "" {
		event.EventType = models.EventTypeDocumentGenerated
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	return p.publish(ctx, p.writerDocument, p.topicDocument, event.EventType, event.Subject, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	// Async writers only fail here on a closed writer or a cancelled context;
	// broker errors surface in the Completion callback.
	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to enqueue Kafka message")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}
	p.metrics.KafkaPublishLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	return nil
}

// Close flushes and closes both writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscript != nil {
		if e := p.writerTranscript.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcript writer")
			err = e
		}
	}
	if p.writerDocument != nil {
		if e := p.writerDocument.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing document writer")
			err = e
		}
	}
	return err
}
