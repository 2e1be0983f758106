package handler

import (
	"errors"
	"net/http"

	"github.com/datecast/backend/internal/domain"
)

// errorResponse is the JSON error envelope for all non-2xx responses.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeServiceError maps domain sentinel errors to HTTP responses.
// Duplicate and not-found conditions get actionable messages; anything
// unrecognized is a 500 with no internals leaked.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrDuplicateIdentity):
		writeJSON(w, http.StatusConflict, errorResponse{Error: errorDetail{
			Code:    "duplicate_identity",
			Message: "already submitted; use your update token to change it",
		}})
	case errors.Is(err, domain.ErrTokenNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errorDetail{
			Code:    "token_not_found",
			Message: "submission not found for this token",
		}})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: errorDetail{
			Code:    "validation_error",
			Message: validationMessage(err),
		}})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorDetail{
			Code:    "internal_error",
			Message: "internal server error",
		}})
	}
}

// writeRequestError reports a bad request rejected before reaching the
// service layer (e.g. missing or malformed body).
func writeRequestError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: errorDetail{
		Code:    "validation_error",
		Message: message,
	}})
}

// validationMessage extracts the submitter-facing text from a wrapped
// domain.ValidationError. The full error string carries internal wrap
// prefixes and never leaves the server; only the ValidationError message
// does. Falls back to a generic message when the chain carries the bare
// sentinel with no typed error.
func validationMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return "invalid request"
}
