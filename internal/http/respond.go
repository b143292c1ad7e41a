package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// maxJSONBody bounds request bodies; transcripts dominate and are capped well below this.
const maxJSONBody = 32 << 20

type errorResponse struct {
	Detail string `json:"detail"`
}

type okResponse struct {
	OK        bool   `json:"ok"`
	AudioPath string `json:"audioPath,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response body")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	return true
}
