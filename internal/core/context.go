package core

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrMissingUser is returned when an operation needs a user id and none was set.
var ErrMissingUser = errors.New("missing user id")

type contextKey string

const (
	ctxKeyIPAddress contextKey = "client_ip"
	ctxKeyUserID    contextKey = "user_id"
)

// ContextWithIPAddress adds the client IP to context for import history.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// GetIPAddressFromContext extracts IP address from context.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// ContextWithUserID adds the authenticated user id to context.
func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, id)
}

// UserIDFromContext returns the user id set by ContextWithUserID.
func UserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	if v, ok := ctx.Value(ctxKeyUserID).(uuid.UUID); ok && v != uuid.Nil {
		return v, nil
	}
	return uuid.Nil, ErrMissingUser
}
