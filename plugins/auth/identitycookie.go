package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/serverutil"
)

// Cookie name used for storing the taskhub identity token.
const IdentityTokenCookieName = "th-id"

// SendIdentityCookie attaches the token to the outgoing GRPC metadata such
// that it will be propagated as a `Set-Cookie` HTTP header by a proxy.
func SendIdentityCookie(ctx context.Context, token string) error {
	cookie := identityCookie(ctx)
	cookie.Value = token
	cookie.Expires = time.Now().Add(expirationFromContext(ctx))
	return serverutil.SendCookie(ctx, cookie)
}

// ClearIdentityCookie asks the client to drop the identity cookie by
// resending it already expired.
func ClearIdentityCookie(ctx context.Context) error {
	cookie := identityCookie(ctx)
	cookie.Value = "[invalidated]"
	cookie.Expires = time.Now().Add(-24 * time.Hour)
	return serverutil.SendCookie(ctx, cookie)
}

// identityCookie returns the cookie attributes shared by set and clear. The
// Secure flag follows the scheme of the configured external address.
func identityCookie(ctx context.Context) *http.Cookie {
	address := serverutil.AddressFromContext(ctx)
	return &http.Cookie{
		Name:     IdentityTokenCookieName,
		Path:     "/",
		Secure:   strings.HasPrefix(address, "https"),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func identityFromCookie(ctx context.Context) (Identity, error) {
	c, ok := serverutil.CookiesFromIncomingContext(ctx)[IdentityTokenCookieName]
	if !ok {
		return Identity{}, errors.Mark(ErrNotFound, 0)
	}
	return ParseIdentityToken(ctx, c.Value)
}
