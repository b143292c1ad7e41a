// Command audioclient streams a WAV file to the transcription WebSocket at real-time pace
// and prints the transcripts it gets back.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/youpy/go-wav"

	"github.com/Konseptt/ai-lecture-notes/internal/models"
)

// Chunks cover 100ms of audio each.
const chunkInterval = 100 * time.Millisecond

func main() {
	audioFile := flag.String("audio", "testdata/lecture-16khz.wav", "Path to a PCM WAV file")
	server := flag.String("server", "ws://localhost:8000/api/ws/transcribe", "Transcription WebSocket URL")
	token := flag.String("token", os.Getenv("LECTURE_NOTES_TOKEN"), "Session token (defaults to $LECTURE_NOTES_TOKEN)")
	wait := flag.Duration("wait", 5*time.Second, "How long to wait for trailing transcripts")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audio file")
	}
	defer f.Close()

	format, err := wav.NewReader(f).Format()
	if err != nil {
		log.Fatal().Err(err).Msg("Not a valid WAV file")
	}
	log.Info().
		Uint16("format", format.AudioFormat).
		Uint16("channels", format.NumChannels).
		Uint32("sampleRate", format.SampleRate).
		Uint16("bitsPerSample", format.BitsPerSample).
		Msg("WAV file")
	if format.AudioFormat != wav.AudioFormatPCM {
		log.Fatal().Msg("Only PCM WAV files are supported")
	}

	chunkSize := int(format.ByteRate) / int(time.Second/chunkInterval)
	if chunkSize <= 0 {
		log.Fatal().Msg("WAV header reports a zero byte rate")
	}

	u, err := url.Parse(*server)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid server URL")
	}
	q := u.Query()
	q.Set("token", *token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	var status models.StatusEvent
	if err := conn.ReadJSON(&status); err != nil {
		log.Fatal().Err(err).Msg("Connection closed before the relay was ready")
	}
	if status.Type != models.EventReady {
		log.Fatal().Str("type", status.Type).Str("message", status.Message).Msg("Relay not ready")
	}
	log.Info().Str("server", u.Host).Msg("Relay ready, streaming audio")

	done := make(chan struct{})
	go readTranscripts(conn, done)

	// The WAV container is sent as-is; the header lets the upstream detect the encoding.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		log.Fatal().Err(err).Msg("Failed to rewind audio file")
	}
	buf := make([]byte, chunkSize)
	var total int64
	start := time.Now()
	ticker := time.NewTicker(chunkInterval)
	defer ticker.Stop()

	for chunk := 1; ; chunk++ {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				log.Fatal().Err(werr).Msg("Failed to send audio")
			}
			total += int64(n)
			if chunk%50 == 0 {
				log.Debug().Int("chunk", chunk).Int64("bytes", total).Msg("Streaming")
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read audio")
		}
		select {
		case <-ticker.C:
		case <-done:
			log.Warn().Msg("Relay closed the connection early")
			return
		}
	}
	log.Info().Int64("bytes", total).Dur("elapsed", time.Since(start)).Msg("Finished streaming, waiting for trailing transcripts")

	select {
	case <-done:
	case <-time.After(*wait):
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func readTranscripts(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("Read loop ended")
			}
			return
		}
		var ev models.TranscriptEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Warn().Err(err).Msg("Unexpected message")
			continue
		}
		switch {
		case ev.Type == models.EventError:
			log.Error().RawJSON("event", data).Msg("Relay error")
		case ev.IsFinal:
			log.Info().Float64("start", ev.Start).Bool("speechFinal", ev.SpeechFinal).Msg(ev.Text)
		default:
			log.Debug().Float64("start", ev.Start).Msg(ev.Text)
		}
	}
}
