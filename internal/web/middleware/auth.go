package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/core"
)

// APIKeyAuth checks X-API-Key against API_KEYS. It must run after UserID.
//
// A key written as "<user uuid>:secret" acts only for that user. It supplies
// the user id when the request carries none and is refused for any other.
// A plain key may act for any user. With REQUIRE_API_KEY off every request
// passes.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	keys := make([]config.APIKey, 0, len(cfg.APIKeys))
	for _, raw := range cfg.APIKeys {
		if k, err := config.ParseAPIKey(raw); err == nil {
			keys = append(keys, k)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get("X-API-Key")
			if presented == "" {
				reject(w, r, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}

			key, ok := matchAPIKey(presented, keys)
			if !ok {
				reject(w, r, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			if key.User != uuid.Nil {
				requested, err := core.UserIDFromContext(r.Context())
				switch {
				case err != nil:
					r = r.WithContext(core.ContextWithUserID(r.Context(), key.User))
				case requested != key.User:
					reject(w, r, http.StatusForbidden, "API key not valid for this user", "AUTH_USER_MISMATCH")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, status int, msg, code string) {
	slog.Warn("auth: "+msg,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", r.RemoteAddr,
	)
	http.Error(w, `{"error":"`+msg+`","code":"`+code+`"}`, status)
}

// matchAPIKey compares presented against every key in constant time.
func matchAPIKey(presented string, keys []config.APIKey) (config.APIKey, bool) {
	var match config.APIKey
	found := 0
	for _, k := range keys {
		eq := subtle.ConstantTimeCompare([]byte(presented), []byte(k.Secret))
		if eq == 1 && found == 0 {
			match = k
		}
		found |= eq
	}
	return match, found == 1
}
