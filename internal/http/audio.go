package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/Konseptt/ai-lecture-notes/internal/store"
)

const audioChunkSize = 256 * 1024

var errAudioTooLarge = errors.New("audio file too large")

// uploadAudio streams the multipart "file" field to disk and records its path on the lecture.
func (s *server) uploadAudio(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	id := chi.URLParam(r, "id")
	if _, err := s.Store.GetLecture(r.Context(), user.ID, id); err != nil {
		s.lectureError(w, err, "Failed to load lecture")
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Expected multipart form with a file field")
		return
	}
	var part io.Reader
	for {
		p, err := reader.NextPart()
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "Expected multipart form with a file field")
			return
		}
		if p.FormName() == "file" {
			part = p
			break
		}
	}

	dir := filepath.Join(s.AudioDir, user.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.internalError(w, err, "Failed to create audio directory")
		return
	}
	path := filepath.Join(dir, id+".webm")

	written, err := s.writeAudio(path, part)
	if errors.Is(err, errAudioTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Audio file too large")
		return
	}
	if err != nil {
		s.internalError(w, err, "Failed to store audio")
		return
	}

	_, err = s.Store.UpdateLecture(r.Context(), user.ID, id, store.LectureUpdate{AudioPath: store.Some(path)})
	if err != nil {
		_ = os.Remove(path)
		s.lectureError(w, err, "Failed to record audio path")
		return
	}
	s.logger.Info().
		Str("lectureId", id).
		Int64("bytes", written).
		Msg("Lecture audio stored")
	writeJSON(w, http.StatusOK, okResponse{OK: true, AudioPath: path})
}

// writeAudio copies src to path in fixed-size chunks, removing the file if it grows past
// the configured limit.
func (s *server) writeAudio(path string, src io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, audioChunkSize)
	written, err := io.CopyBuffer(f, io.LimitReader(src, s.MaxAudioBytes+1), buf)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > s.MaxAudioBytes {
		err = errAudioTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return written, nil
}

// downloadAudio serves stored audio. Browsers cannot set headers on <audio> requests, so
// the token may also arrive as a query parameter.
func (s *server) downloadAudio(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	user, status, detail := s.userForToken(r.Context(), token)
	if status != 0 {
		writeError(w, status, detail)
		return
	}

	lecture, err := s.Store.GetLecture(r.Context(), user.ID, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && lecture.AudioPath == nil) {
		writeError(w, http.StatusNotFound, "Audio not found")
		return
	}
	if err != nil {
		s.internalError(w, err, "Failed to load lecture")
		return
	}

	f, err := os.Open(*lecture.AudioPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "Audio file missing from disk")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.internalError(w, err, "Failed to stat audio")
		return
	}

	w.Header().Set("Content-Type", "audio/webm")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": fmt.Sprintf("%s.webm", lecture.Title)}))
	http.ServeContent(w, r, "", info.ModTime(), f)
}
