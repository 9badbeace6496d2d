// Package handler contains the HTTP handlers. Handlers decode requests,
// call the service layer, and encode responses — no business rules live
// here.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/budget-tracker/internal/apperror"
)

// ErrorResponse is the error shape every endpoint returns. The frontend
// reads exactly one field.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON sends a JSON response. Headers and status must go out before
// the body; once Encode writes, the headers are committed.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already gone; logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError translates a service error into an HTTP response.
//
// Every auth-domain failure — validation, duplicate account, unknown user,
// wrong password, provider-only account — maps to 400 with its message;
// that is the contract the frontend was written against (a duplicate would
// be 409 in a vacuum, but the surface promises 400 "User already exists").
// Anything unrecognized is a 500 with a generic body: raw store or signing
// errors are logged by the caller, never shown to clients.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrValidation),
			errors.Is(err, apperror.ErrDuplicate),
			errors.Is(err, apperror.ErrNotFound),
			errors.Is(err, apperror.ErrInvalidCredentials),
			errors.Is(err, apperror.ErrExternalOnly):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: appErr.Message})
			return
		}
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Something went wrong"})
}
