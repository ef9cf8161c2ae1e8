package config

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// APIKey is one parsed API_KEYS entry.
type APIKey struct {
	Secret string
	User   uuid.UUID // uuid.Nil for a key that may act for any user
}

// ParseAPIKey reads "secret" or "<user uuid>:secret". An entry whose prefix is
// not a UUID is a plain key, colons included.
func ParseAPIKey(raw string) (APIKey, error) {
	raw = strings.TrimSpace(raw)
	if prefix, secret, ok := strings.Cut(raw, ":"); ok {
		if user, err := uuid.Parse(prefix); err == nil {
			if user == uuid.Nil {
				return APIKey{}, errors.New("API key bound to the nil user")
			}
			if secret == "" {
				return APIKey{}, errors.New("API key for user " + prefix + " is empty")
			}
			return APIKey{Secret: secret, User: user}, nil
		}
	}
	if raw == "" {
		return APIKey{}, errors.New("empty API key")
	}
	return APIKey{Secret: raw}, nil
}
