package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"condominio.app/internal/audit"
	"condominio.app/internal/auth"
	"condominio.app/internal/condo"
	"condominio.app/internal/obs"
)

// Error codes written in the "error.code" field.
const (
	codeInvalidCredentials = "invalid_credentials"
	codeInvalidToken       = "invalid_token"
	codeInactiveAccount    = "inactive_account"
	codeRoleNotPermitted   = "role_not_permitted"
	codeNotOwner           = "not_owner"
	codeUnavailable        = "service_unavailable"
	codeInvalidInput       = "invalid_input"
	codeAlreadyExists      = "already_exists"
	codeConflict           = "conflict"
	codeNotFound           = "not_found"
	codeRateLimited        = "rate_limited"
	codeMethodNotAllowed   = "method_not_allowed"
	codeInternal           = "internal_error"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`"`)
	}
	writeJSON(w, status, errorEnvelope{
		Error:     errorBody{Code: code, Message: msg},
		RequestID: audit.RequestIDFromContext(r.Context()),
	})
}

// writeServiceError maps domain errors onto the HTTP taxonomy. Unexpected
// errors are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, codeInvalidCredentials, "incorrect email or password")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, codeInvalidToken, "could not validate credentials")
	case errors.Is(err, auth.ErrInactiveAccount):
		writeError(w, r, http.StatusForbidden, codeInactiveAccount, "account is disabled")
	case errors.Is(err, auth.ErrNotOwner):
		writeError(w, r, http.StatusForbidden, codeNotOwner, "resource belongs to another account")
	case errors.Is(err, auth.ErrRoleNotPermitted):
		writeError(w, r, http.StatusForbidden, codeRoleNotPermitted, "role does not allow this operation")
	case errors.Is(err, auth.ErrUnavailable):
		obs.From(r.Context()).Error("identity store unavailable", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "service temporarily unavailable")
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, condo.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, inputMessage(err))
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, codeAlreadyExists, "email already registered")
	case errors.Is(err, condo.ErrConflict):
		writeError(w, r, http.StatusConflict, codeConflict, inputMessage(err))
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, condo.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
	default:
		obs.From(r.Context()).Error("request failed", obs.Route(obs.RoutePattern(r)), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// inputMessage strips the package prefix from validation errors; their text
// is built from constants and safe to show.
func inputMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func invalidInput(w http.ResponseWriter, r *http.Request, msg string) {
	writeError(w, r, http.StatusBadRequest, codeInvalidInput, msg)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return errors.New("malformed JSON body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, codeNotFound, "route not found")
}
