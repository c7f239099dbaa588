package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"roledash.org/internal/audit"
	"roledash.org/internal/auth"
	"roledash.org/internal/obs"
	"roledash.org/internal/users"
	"roledash.org/internal/validation"
)

const (
	msgNoToken          = "Access token required"
	msgInvalidToken     = "Invalid or expired token"
	msgUnauthenticated  = "User not authenticated"
	msgInsufficientRole = "Insufficient permissions"
	msgNotOwner         = "Access denied. You can only delete your own account."
	msgBadCredentials   = "Invalid email or password"
	msgEmailTaken       = "Email already registered"
	msgInvalidRole      = "Invalid role"
	msgUserNotFound     = "User not found"
	msgInternal         = "Internal Server Error"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"message": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// handleError maps service errors to responses. Anything unrecognised is a
// 500 with a generic body; the detail goes to the log only.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs validation.Errors
	switch {
	case errors.Is(err, auth.ErrNoToken):
		writeError(w, r, http.StatusUnauthorized, msgNoToken)
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusForbidden, msgInvalidToken)
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
	case errors.Is(err, users.ErrNotOwner):
		writeError(w, r, http.StatusForbidden, msgNotOwner)
	case errors.Is(err, auth.ErrInsufficientRole):
		writeError(w, r, http.StatusForbidden, msgInsufficientRole)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, msgBadCredentials)
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusBadRequest, msgEmailTaken)
	case errors.As(err, &fieldErrs):
		payload := map[string]any{"errors": fieldErrs}
		if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusBadRequest, payload)
	case errors.Is(err, users.ErrInvalidRole):
		writeError(w, r, http.StatusBadRequest, msgInvalidRole)
	case errors.Is(err, auth.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "Invalid request")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, msgUserNotFound)
	default:
		obs.Logger().Error().Err(err).
			Str("request_id", audit.RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, msgInternal)
	}
}

// decodeJSON reads exactly one JSON object; unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// badBody answers a request whose body could not be decoded.
func badBody(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
}
