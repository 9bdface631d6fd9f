// Package web maps service errors onto HTTP responses so every handler
// reports the taxonomy the same way.
package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Jagadesh17/exchangeease/internal/store"
)

type errorBody struct {
	Error string `json:"error"`
}

// RespondJSON writes v as a JSON body with the given status.
func RespondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("encode response: %v", err)
		}
	}
}

// RespondError translates a taxonomy error into a status code. Callers must
// be able to tell a duplicate request apart from a generic failure, so every
// sentinel gets its own status.
func RespondError(w http.ResponseWriter, err error) {
	RespondJSON(w, StatusFor(err), errorBody{Error: err.Error()})
}

// StatusFor picks the HTTP status for a service error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateRequest), errors.Is(err, store.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, store.ErrReferential):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrUnreachable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
