package models

// Kafka event types.
const (
	EventTypeTranscriptFinal   = "lecture.transcript.final"
	EventTypeDocumentGenerated = "lecture.document.generated"
)

// TranscriptFinalEvent is published for every final transcript a relay session forwards.
type TranscriptFinalEvent struct {
	EventType   string  `json:"eventType"`
	SessionID   string  `json:"sessionId"`
	Subject     string  `json:"subject"`
	Text        string  `json:"text"`
	SpeechFinal bool    `json:"speechFinal"`
	Start       float64 `json:"start"`
	Timestamp   int64   `json:"timestamp"`
}

// DocumentGeneratedEvent is published after a summary or notes document is produced.
type DocumentGeneratedEvent struct {
	EventType  string `json:"eventType"`
	Subject    string `json:"subject"`
	Kind       string `json:"kind"`
	Fallback   bool   `json:"fallback"`
	InputChars int    `json:"inputChars"`
	Timestamp  int64  `json:"timestamp"`
}
