// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/crm/internal/core"
	"github.com/JonMunkholm/crm/internal/logging"
)

// Logger logs one structured entry per request.
//
// Log fields:
//   - method, path, status
//   - duration_ms: request processing time
//   - bytes: response body size
//   - ip: client address as resolved by ClientIP
//   - user_id: when the UserID middleware found one
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.bytes,
			"ip", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		}
		if id, err := core.UserIDFromContext(r.Context()); err == nil {
			args = append(args, "user_id", id)
		}

		logger := logging.FromContext(r.Context())
		if ww.status >= http.StatusInternalServerError {
			logger.Warn("request", args...)
			return
		}
		logger.Info("request", args...)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap exposes the underlying ResponseWriter to http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
