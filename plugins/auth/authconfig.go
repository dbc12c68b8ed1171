package auth

import (
	"context"
	"time"

	"github.com/dpup/taskhub"
)

func init() {
	taskhub.RegisterConfigKeys(
		taskhub.ConfigKeyInfo{
			Key:         "auth.signingKey",
			Description: "JWT signing key for identity tokens",
			Type:        "string",
		},
		taskhub.ConfigKeyInfo{
			Key:         "auth.expiration",
			Description: "How long identity tokens should be valid for",
			Type:        "duration",
			Default:     "24h",
		},
	)
}

// Fallback used when no expiration has been injected into the context.
const defaultTokenExpiration = 30 * 24 * time.Hour

// Context keys for the auth plugin's injected configuration.
type (
	signingKey      struct{}
	tokenExpiration struct{}
)

func injectSigningKey(key string) taskhub.ConfigInjector {
	return func(ctx context.Context) context.Context {
		return context.WithValue(ctx, signingKey{}, key)
	}
}

func injectExpiration(exp time.Duration) taskhub.ConfigInjector {
	return func(ctx context.Context) context.Context {
		return context.WithValue(ctx, tokenExpiration{}, exp)
	}
}

// SigningKeyFromContext returns the JWT signing key from context.
// This is exported for use by plugins that need to create their own tokens.
func SigningKeyFromContext(ctx context.Context) []byte {
	return signingKeyFromContext(ctx)
}

func signingKeyFromContext(ctx context.Context) []byte {
	key, ok := ctx.Value(signingKey{}).(string)
	if !ok {
		key = "Between the backlog and the board, a session holds its word."
	}
	return []byte(key)
}

func expirationFromContext(ctx context.Context) time.Duration {
	exp, ok := ctx.Value(tokenExpiration{}).(time.Duration)
	if !ok {
		return defaultTokenExpiration
	}
	return exp
}
