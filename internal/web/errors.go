package web

// errors.go turns errors into responses.
//
// The technical error is logged with the request id; the client gets the
// core.MapError message as JSON for API routes, an HTML fragment for HTMX
// requests, or plain text otherwise.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/crm/internal/core"
	"github.com/JonMunkholm/crm/internal/web/templates"
)

var (
	errRateLimited    = errors.New("rate limit exceeded")
	errNoFileProvided = errors.New("no file provided")
	errInvalidBody    = errors.New("invalid request body")
	errInvalidAsOf    = errors.New("invalid as_of")
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func newErrorResponse(msg core.UserMessage) ErrorResponse {
	return ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// statusFor picks the HTTP status for an error from the service layer.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrMissingUser):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrEmptyFile), errors.Is(err, errNoFileProvided),
		errors.Is(err, errInvalidBody), errors.Is(err, errInvalidAsOf):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoRowsDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, statusCode)
	case wantsJSON(r):
		writeJSON(w, statusCode, newErrorResponse(userMsg))
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", statusCode)
	}
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		slog.Error("render error partial", "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// decodeJSON is used by handlers that accept a JSON body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
