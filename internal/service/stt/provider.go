// Package stt defines the contract between the transcription relay and a streaming
// speech-to-text backend (Deepgram, Google, mock).
package stt

import (
	"context"
	"errors"

	"github.com/Konseptt/ai-lecture-notes/internal/models"
)

var (
	// ErrStreamClosed is returned by Recv once the upstream has finished sending.
	ErrStreamClosed = errors.New("upstream stream closed")

	// ErrNotConfigured is returned by Open when the provider has no credentials.
	ErrNotConfigured = errors.New("transcription provider not configured")
)

// Outcome classifies one upstream message.
type Outcome int

const (
	// OutcomeSkip means the message carried nothing to forward.
	OutcomeSkip Outcome = iota
	// OutcomeTranscript means Event holds a transcript for the client.
	OutcomeTranscript
)

// Result is the interpretation of one upstream message.
type Result struct {
	Outcome Outcome
	Event   models.TranscriptEvent
}

// Skip is the Result for messages that produce no client event.
var Skip = Result{Outcome: OutcomeSkip}

// Transcript wraps ev as a forwardable Result.
func Transcript(ev models.TranscriptEvent) Result {
	return Result{Outcome: OutcomeTranscript, Event: ev}
}

// Provider opens upstream transcription sessions.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Configured reports whether Open can be attempted at all.
	Configured() bool

	// Open establishes one upstream session. The caller owns the Stream and must Close it.
	Open(ctx context.Context) (Stream, error)
}

// Stream is one open upstream session. Send and CloseSend are called from one goroutine,
// Recv from another; Close may be called from any goroutine and unblocks both.
type Stream interface {
	// Send forwards one audio frame verbatim.
	Send(audio []byte) error

	// CloseSend tells the upstream no more audio will follow so it can flush results.
	CloseSend() error

	// Recv blocks for the next upstream message. It returns ErrStreamClosed once the
	// upstream has finished.
	Recv() (Result, error)

	// Close releases the connection. Calling Close more than once is safe.
	Close() error
}
