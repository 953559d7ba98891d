package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cbegin/stemdeck-go"
	"github.com/cbegin/stemdeck-go/internal/catalog"
)

var errSessionNotFound = errors.New("session not found")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, stemdeck.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, stemdeck.ErrInvalidTransition), errors.Is(err, stemdeck.ErrNoAudibleTracks):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrSongNotFound), errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, stemdeck.ErrClosed):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
