// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/mftcargo/tracker/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsServerError reports whether err would be rendered as a 5xx.
func IsServerError(err error) bool {
	return !errors.Is(err, shared.ErrValidation) &&
		!errors.Is(err, shared.ErrUnauthorized) &&
		!errors.Is(err, shared.ErrInvalidCredentials) &&
		!errors.Is(err, shared.ErrNotFound) &&
		!errors.Is(err, shared.ErrConflict) &&
		!errors.Is(err, shared.ErrIdempotencyConflict)
}
