package identity

import (
	"context"
	"strings"
)

type ctxKey string

const emailKey ctxKey = "identity_email"

// ContextWithEmail stores the authenticated user's email in the context.
func ContextWithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, strings.TrimSpace(email))
}

// EmailFromContext extracts the authenticated user's email from the context.
func EmailFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(emailKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
