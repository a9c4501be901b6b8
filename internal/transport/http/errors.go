package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"quizclash-service/internal/domain"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps a domain error to an HTTP status and a stable client-facing code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrQuestionSetNotFound):
		return http.StatusNotFound, "question_set_not_found"
	case errors.Is(err, domain.ErrPlayerNotFound):
		return http.StatusNotFound, "player_not_found"
	case errors.Is(err, domain.ErrSessionFull):
		return http.StatusConflict, "session_full"
	case errors.Is(err, domain.ErrDuplicatePlayerName):
		return http.StatusConflict, "duplicate_name"
	case errors.Is(err, domain.ErrGameInProgress):
		return http.StatusConflict, "game_in_progress"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrQuestionGenerationFailed):
		return http.StatusConflict, "generation_failed"
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return http.StatusBadRequest, "invalid_configuration"
	case errors.Is(err, domain.ErrInvalidPlayerName):
		return http.StatusBadRequest, "invalid_name"
	case errors.Is(err, domain.ErrNotHost):
		return http.StatusForbidden, "not_host"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorPayload{Code: code, Message: message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}
