package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/core"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.SecurityConfig
		key    string
		status int
	}{
		{"disabled", config.SecurityConfig{}, "", http.StatusOK},
		{"missing key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, "", http.StatusUnauthorized},
		{"wrong key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, "nope", http.StatusForbidden},
		{"second key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}, "k2", http.StatusOK},
		{"no keys configured", config.SecurityConfig{RequireAPIKey: true}, "k1", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			APIKeyAuth(&tt.cfg)(okHandler).ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestAPIKeyAuth_UserBoundKeys(t *testing.T) {
	owner, other := uuid.New(), uuid.New()
	cfg := config.SecurityConfig{
		RequireAPIKey: true,
		APIKeys:       []string{owner.String() + ":owner-key", "shared-key"},
	}

	tests := []struct {
		name     string
		key      string
		user     uuid.UUID
		status   int
		wantUser uuid.UUID
	}{
		{"bound key fills user", "owner-key", uuid.Nil, http.StatusOK, owner},
		{"bound key same user", "owner-key", owner, http.StatusOK, owner},
		{"bound key other user", "owner-key", other, http.StatusForbidden, uuid.Nil},
		{"shared key any user", "shared-key", other, http.StatusOK, other},
		{"shared key no user", "shared-key", uuid.Nil, http.StatusOK, uuid.Nil},
		{"bound entry is not a plain key", owner.String() + ":owner-key", uuid.Nil, http.StatusForbidden, uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got uuid.UUID
			h := APIKeyAuth(&cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = core.UserIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			req.Header.Set("X-API-Key", tt.key)
			if tt.user != uuid.Nil {
				req = req.WithContext(core.ContextWithUserID(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got != tt.wantUser {
				t.Errorf("user = %s, want %s", got, tt.wantUser)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		realIP     string
		forwarded  string
		want       string
	}{
		{"direct client drops port", nil, "203.0.113.9:5000", "", "", "203.0.113.9"},
		{"untrusted ignores header", []string{"10.0.0.0/8"}, "203.0.113.9:5000", "1.2.3.4", "", "203.0.113.9"},
		{"trusted uses X-Real-IP", []string{"10.0.0.0/8"}, "10.1.2.3:5000", "1.2.3.4", "", "1.2.3.4"},
		{"trusted uses forwarded client", []string{"10.1.2.3"}, "10.1.2.3:5000", "", "5.6.7.8, 10.1.2.3", "5.6.7.8"},
		{"prepended address ignored", []string{"10.0.0.0/8"}, "10.1.2.3:5000", "", "6.6.6.6, 5.6.7.8, 10.9.9.9", "5.6.7.8"},
		{"all hops trusted", []string{"10.0.0.0/8"}, "10.1.2.3:5000", "", "10.4.4.4", "10.1.2.3"},
		{"invalid header kept out", []string{"10.0.0.0/8"}, "10.1.2.3:5000", "not-an-ip", "", "10.1.2.3"},
		{"invalid cidr skipped", []string{"bogus", "10.0.0.0/8"}, "10.1.2.3:5000", "1.2.3.4", "", "1.2.3.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var remote, recorded string
			h := ClientIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				remote = r.RemoteAddr
				recorded = core.GetIPAddressFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if remote != tt.want || recorded != tt.want {
				t.Errorf("RemoteAddr = %q, context ip = %q, want %q", remote, recorded, tt.want)
			}
		})
	}
}

func TestUserID(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		header string
		query  string
		want   uuid.UUID
	}{
		{"header", id.String(), "", id},
		{"query", "", "?user_id=" + id.String(), id},
		{"invalid", "not-a-uuid", "", uuid.Nil},
		{"nil uuid", uuid.Nil.String(), "", uuid.Nil},
		{"absent", "", "", uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got uuid.UUID
			h := UserID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = core.UserIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(UserHeader, tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("user = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLogger_CapturesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("short and stout"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want first WriteHeader to win", rec.Code)
	}
}
