package auth

import (
	"context"
)

type contextKey string

// ContextKeyLogin is the context key for the authenticated GitHub login
const ContextKeyLogin contextKey = "github_login"

// WithLogin adds the GitHub login to the context
func WithLogin(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, ContextKeyLogin, login)
}

// LoginFromContext retrieves the GitHub login from the context
func LoginFromContext(ctx context.Context) (string, bool) {
	login, ok := ctx.Value(ContextKeyLogin).(string)
	return login, ok
}
