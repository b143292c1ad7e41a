package http

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/Konseptt/ai-lecture-notes/internal/store"
)

func (s *server) listLectures(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	lectures, err := s.Store.ListLectures(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, err, "Failed to list lectures")
		return
	}
	writeJSON(w, http.StatusOK, lectures)
}

func (s *server) getLecture(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	lecture, err := s.Store.GetLecture(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		s.lectureError(w, err, "Failed to load lecture")
		return
	}
	writeJSON(w, http.StatusOK, lecture)
}

func (s *server) createLecture(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	var req store.NewLecture
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Validator.Lecture(req.Title, req.Date, req.Duration); err != nil {
		writeValidationError(w, err)
		return
	}
	lecture, err := s.Store.CreateLecture(r.Context(), user.ID, req)
	if err != nil {
		s.internalError(w, err, "Failed to create lecture")
		return
	}
	s.logger.Info().Str("userId", user.ID).Str("lectureId", lecture.ID).Msg("Lecture created")
	writeJSON(w, http.StatusOK, lecture)
}

func (s *server) updateLecture(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	var req store.LectureUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Validator.LectureTitle(req.Title); err != nil {
		writeValidationError(w, err)
		return
	}
	lecture, err := s.Store.UpdateLecture(r.Context(), user.ID, chi.URLParam(r, "id"), req)
	if err != nil {
		s.lectureError(w, err, "Failed to update lecture")
		return
	}
	writeJSON(w, http.StatusOK, lecture)
}

func (s *server) deleteLecture(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	id := chi.URLParam(r, "id")
	lecture, err := s.Store.GetLecture(r.Context(), user.ID, id)
	if err != nil {
		s.lectureError(w, err, "Failed to load lecture")
		return
	}
	if err := s.Store.DeleteLecture(r.Context(), user.ID, id); err != nil {
		s.lectureError(w, err, "Failed to delete lecture")
		return
	}
	if lecture.AudioPath != nil {
		if err := os.Remove(*lecture.AudioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("lectureId", id).Msg("Failed to remove lecture audio")
		}
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *server) lectureError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Lecture not found")
		return
	}
	s.internalError(w, err, msg)
}
