package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/halcyonlabs/authgate/internal/auth"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
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

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response with a WWW-Authenticate
// challenge, as bearer-token APIs should.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeConflict writes a 400 error response for duplicate resources.
// Duplicates are reported as 400 rather than 409 so validation failures
// and uniqueness failures look the same to clients.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeConflict, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeAuthError translates auth sentinel errors into HTTP responses.
// Anything unrecognised is treated as an infrastructure failure (500),
// keeping auth rejections (4xx) distinct from outages.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenRevoked):
		writeUnauthorized(w, "could not validate credentials")
	case errors.Is(err, auth.ErrUserInactive):
		writeBadRequest(w, "inactive user")
	case errors.Is(err, auth.ErrNotEnoughPermissions):
		writeForbidden(w, "not enough permissions")
	case errors.Is(err, auth.ErrRegistrationClosed):
		writeForbidden(w, "open registration is not allowed")
	case errors.Is(err, auth.ErrUsernameExists):
		writeConflict(w, "username already registered")
	case errors.Is(err, auth.ErrEmailExists):
		writeConflict(w, "email already registered")
	case errors.Is(err, auth.ErrUserNotFound):
		writeNotFound(w, "user not found")
	case errors.Is(err, auth.ErrRoleNotFound):
		writeNotFound(w, "role not found")
	case errors.Is(err, auth.ErrPermissionNotFound):
		writeNotFound(w, "permission not found")
	case errors.Is(err, auth.ErrRoleExists):
		writeConflict(w, "role already exists")
	case errors.Is(err, auth.ErrPermissionExists):
		writeConflict(w, "permission already exists")
	default:
		writeInternalError(w, "internal server error")
	}
}
