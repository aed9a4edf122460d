// Package httputil centralizes JSON response writing so every handler emits
// the same envelope.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
)

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the JSON error envelope. error_description is omitted for
// internal errors so store and provider detail never reaches callers.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	CorrelationID    string `json:"correlation_id,omitempty"`
}

// WriteError translates a domain error into the JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), ErrorResponse{
		Error:            string(code),
		ErrorDescription: dErrors.MessageOf(err),
	})
}

// WriteErrorWithCorrelation is WriteError plus a correlation id callers can
// quote when reporting a failure.
func WriteErrorWithCorrelation(w http.ResponseWriter, err error, correlationID string) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), ErrorResponse{
		Error:            string(code),
		ErrorDescription: dErrors.MessageOf(err),
		CorrelationID:    correlationID,
	})
}
