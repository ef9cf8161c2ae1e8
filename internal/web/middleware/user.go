package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crm/internal/core"
)

// UserHeader carries the caller's user id. Authentication happens upstream.
const UserHeader = "X-User-ID"

// UserID stores the user id from the X-User-ID header, or the user_id query
// parameter for browser links, in the request context. Requests without a
// valid id pass through; handlers that need one get core.ErrMissingUser.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserHeader))
		if raw == "" {
			raw = strings.TrimSpace(r.URL.Query().Get("user_id"))
		}
		if id, err := uuid.Parse(raw); err == nil && id != uuid.Nil {
			r = r.WithContext(core.ContextWithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
