// Package httpapi is the notifier's HTTP management surface: the DLQ admin
// endpoints and the SSE/WebSocket stream upgrade handlers, wired together
// with the teacher's chi router stack.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arc-self/eventcore/internal/apperr"
	"github.com/arc-self/eventcore/internal/pkgcontext"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// Data writes a 2xx JSON body.
func Data(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Err maps err to an HTTP status and structured error body, following the
// teacher's response.Err domain-error-to-status mapping.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal error"
	var meta map[string]string

	var ae *apperr.AppError
	if errors.As(err, &ae) {
		switch ae.Code {
		case apperr.CodeValidation:
			status, code = http.StatusBadRequest, "validation_error"
		case apperr.CodeNotFound:
			status, code = http.StatusNotFound, "not_found"
		case apperr.CodeConflict:
			status, code = http.StatusConflict, "conflict"
		case apperr.CodeAuthFailed:
			status, code = http.StatusUnauthorized, "auth_failed"
		default:
			status, code = http.StatusBadRequest, string(ae.Code)
		}
		message = ae.Message
		meta = ae.Meta
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorPayload{
		Code:      code,
		Message:   message,
		Meta:      meta,
		RequestID: pkgcontext.GetRequestID(r.Context()),
	}})
}
