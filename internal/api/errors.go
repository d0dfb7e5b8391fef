package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-things/internal/action"
	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeForbidden   = "forbidden"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "service_unavailable"
	ErrCodeUnsupported = "unsupported_action"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps thing and action errors to their HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, thing.ErrThingNotFound),
		errors.Is(err, thing.ErrPropertyNotFound),
		errors.Is(err, action.ErrActionNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, thing.ErrReadOnly):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, thing.ErrInvalidValue):
		writeBadRequest(w, err.Error())
	case errors.Is(err, action.ErrUnsupported):
		writeError(w, http.StatusBadRequest, ErrCodeUnsupported, err.Error())
	case errors.Is(err, thing.ErrLockPoisoned):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		writeInternalError(w, "internal server error")
	}
}
