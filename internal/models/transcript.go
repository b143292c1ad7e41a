// Package models defines the data structures exchanged with clients and downstream consumers.
package models

// Client-facing event types on the transcription socket.
const (
	EventReady      = "ready"
	EventFallback   = "fallback"
	EventTranscript = "transcript"
	EventError      = "error"
)

// TranscriptEvent is one recognized piece of speech forwarded to the client.
// Start is the offset in seconds from the beginning of the upstream stream.
type TranscriptEvent struct {
	Type        string  `json:"type"`
	Text        string  `json:"text"`
	IsFinal     bool    `json:"is_final"`
	SpeechFinal bool    `json:"speech_final"`
	Start       float64 `json:"start"`
}

// NewTranscriptEvent returns a transcript event with its type set.
func NewTranscriptEvent(text string, isFinal, speechFinal bool, start float64) TranscriptEvent {
	return TranscriptEvent{
		Type:        EventTranscript,
		Text:        text,
		IsFinal:     isFinal,
		SpeechFinal: speechFinal,
		Start:       start,
	}
}

// StatusEvent is a control message sent to the client: ready, fallback or error.
type StatusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}
