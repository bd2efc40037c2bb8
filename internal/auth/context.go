package auth

import "context"

type contextKey struct{}

// Credentials identify the caller towards the attendance backend.
type Credentials struct {
	Token string
}

func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

func FromContext(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(contextKey{}).(Credentials)
	return c, ok
}

// Token returns the backend token carried by ctx, or "" when there is none.
func Token(ctx context.Context) string {
	c, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return c.Token
}
