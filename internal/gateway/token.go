package gateway

import "context"

// TokenProvider supplies the bearer token attached to gateway requests.
// Acquiring and refreshing credentials is the login flow's problem; the
// daemon only forwards whatever the provider hands out.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider returning a fixed token, typically read from
// configuration.
type StaticToken string

// Token returns the fixed token.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}
