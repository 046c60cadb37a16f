package token

import (
	"context"
	"errors"
)

var ErrNoSession = errors.New("no checkout session in context")

type sessionKey struct{}

// WithSession scopes token storage to one browser session.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
