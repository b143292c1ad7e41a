// Package mock provides a simulated transcription provider for local development without
// provider credentials. Each frame of audio advances a scripted utterance: progressive
// interim transcripts, then exactly one final.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/Konseptt/ai-lecture-notes/internal/models"
	"github.com/Konseptt/ai-lecture-notes/internal/service/stt"
)

// SimulatedUtterance is a scripted utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials []string
	Final    string
	Duration float64 // seconds of speech the utterance represents
}

// DefaultUtterances are cycled through across sessions.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials: []string{"Today we", "Today we will cover", "Today we will cover entropy"},
		Final:    "Today we will cover entropy and the second law.",
		Duration: 3.2,
	},
	{
		Partials: []string{"Entropy is", "Entropy is a measure of"},
		Final:    "Entropy is a measure of the number of microstates.",
		Duration: 2.8,
	},
	{
		Partials: []string{"This will", "This will be on", "This will be on the exam"},
		Final:    "This will be on the exam, so write it down.",
		Duration: 2.5,
	},
	{
		Partials: []string{"For homework", "For homework read chapter"},
		Final:    "For homework, read chapter four before Thursday.",
		Duration: 3.0,
	},
}

var (
	utteranceCounter int
	counterMu        sync.Mutex
)

func nextUtterance() int {
	counterMu.Lock()
	defer counterMu.Unlock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	return idx
}

// Provider implements stt.Provider with scripted results.
type Provider struct {
	// Delay simulates provider processing latency per result.
	Delay time.Duration
}

// New creates a mock provider.
func New() *Provider {
	return &Provider{Delay: 50 * time.Millisecond}
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "mock" }

// Configured implements stt.Provider. The mock is always available.
func (p *Provider) Configured() bool { return true }

// Open starts a simulated session.
func (p *Provider) Open(ctx context.Context) (stt.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Stream{
		delay:   p.Delay,
		uttIdx:  nextUtterance(),
		results: make(chan stt.Result, 64),
		done:    make(chan struct{}),
	}, nil
}

// Stream is a simulated upstream session.
type Stream struct {
	delay time.Duration

	mu           sync.Mutex
	uttIdx       int
	partialIndex int
	offset       float64
	framesSeen   int
	closeSent    bool
	closed       bool

	results   chan stt.Result
	done      chan struct{}
	closeOnce sync.Once
}

// Send advances the current utterance by one step per audio frame.
func (s *Stream) Send(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeSent || s.closed {
		return stt.ErrStreamClosed
	}
	s.framesSeen++

	utt := DefaultUtterances[s.uttIdx]
	if s.partialIndex < len(utt.Partials) {
		s.emit(models.NewTranscriptEvent(utt.Partials[s.partialIndex], false, false, s.offset))
		s.partialIndex++
		return nil
	}
	s.finishUtterance()
	return nil
}

// finishUtterance emits the final for the current utterance and moves to the next one.
// Callers hold s.mu.
func (s *Stream) finishUtterance() {
	utt := DefaultUtterances[s.uttIdx]
	s.emit(models.NewTranscriptEvent(utt.Final, true, true, s.offset))
	s.offset += utt.Duration
	s.uttIdx = (s.uttIdx + 1) % len(DefaultUtterances)
	s.partialIndex = 0
}

func (s *Stream) emit(ev models.TranscriptEvent) {
	select {
	case s.results <- stt.Transcript(ev):
	default:
		// Reader fell behind; drop like a lossy upstream would.
	}
}

// CloseSend flushes a final for any utterance in progress and ends the result stream.
func (s *Stream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeSent || s.closed {
		return nil
	}
	s.closeSent = true
	if s.partialIndex > 0 {
		s.finishUtterance()
	}
	close(s.results)
	return nil
}

// Recv returns the next scripted result, ErrStreamClosed after CloseSend drains.
func (s *Stream) Recv() (stt.Result, error) {
	select {
	case <-s.done:
		return stt.Skip, stt.ErrStreamClosed
	case r, ok := <-s.results:
		if !ok {
			return stt.Skip, stt.ErrStreamClosed
		}
		if s.delay > 0 {
			t := time.NewTimer(s.delay)
			defer t.Stop()
			select {
			case <-s.done:
				return stt.Skip, stt.ErrStreamClosed
			case <-t.C:
			}
		}
		return r, nil
	}
}

// Close ends the session and unblocks Recv.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

// FramesSeen reports how many audio frames were received.
func (s *Stream) FramesSeen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesSeen
}
