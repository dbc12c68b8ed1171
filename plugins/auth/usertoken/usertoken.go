// Package usertoken issues portable, self-contained identity tokens.
//
// Unlike the signed JWTs issued by the auth plugin, user tokens are
// encrypted: the payload is not readable by the client, and any process
// sharing the secret can decode one without a session-store round trip. They
// are intended for handing identity across cooperating services or into
// long-lived client storage.
//
// A decode failure is deliberately silent. The identity extractor reports
// "no identity" for a bad token, so an expired or tampered cookie degrades
// to a signed-out state instead of an error page.
package usertoken

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dpup/taskhub"
	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/auth"
	"github.com/dpup/taskhub/serverutil"
)

const (
	// Constant name for the user token plugin.
	PluginName = "auth_usertoken"

	// Cookie name used for storing the portable user token.
	UserTokenCookieName = "th-user"

	// How long user token cookies live. Kept separate from the identity token
	// expiration since the token itself carries no expiry.
	cookieMaxAge = 30 * 24 * time.Hour
)

func init() {
	taskhub.RegisterConfigKeys(
		taskhub.ConfigKeyInfo{
			Key:         "auth.userToken.secret",
			Description: "Shared secret used to encrypt portable user tokens",
			Type:        "string",
		},
	)
}

// UserTokenOptions allow configuration of the UserTokenPlugin.
type UserTokenOption func(*UserTokenPlugin)

// WithSecret sets the encryption secret, overriding the
// `auth.userToken.secret` config value.
func WithSecret(secret string) UserTokenOption {
	return func(p *UserTokenPlugin) {
		p.secret = secret
	}
}

// Plugin returns a new UserTokenPlugin.
func Plugin(opts ...UserTokenOption) *UserTokenPlugin {
	p := &UserTokenPlugin{
		secret: taskhub.ConfigString("auth.userToken.secret"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UserTokenPlugin issues and reads portable identity tokens.
type UserTokenPlugin struct {
	secret string
	codec  *Codec
}

// From taskhub.Plugin.
func (p *UserTokenPlugin) Name() string {
	return PluginName
}

// From taskhub.DependentPlugin.
func (p *UserTokenPlugin) Deps() []string {
	return []string{auth.PluginName}
}

// From taskhub.InitializablePlugin.
func (p *UserTokenPlugin) Init(ctx context.Context, r *taskhub.Registry) error {
	codec, err := NewCodec(p.secret)
	if err != nil {
		return errors.Wrap(err, 0).Append("usertoken: config missing secret")
	}
	p.codec = codec

	ap := r.Get(auth.PluginName).(*auth.AuthPlugin)
	ap.AddIdentityExtractor(p.identityFromUserCookie)

	return nil
}

// Codec returns the configured token codec. Only valid after Init.
func (p *UserTokenPlugin) Codec() *Codec {
	return p.codec
}

// SendUserCookie encodes the payload and attaches it to the outgoing
// response as a cookie.
func (p *UserTokenPlugin) SendUserCookie(ctx context.Context, payload Payload) error {
	token, err := p.codec.Encode(payload)
	if err != nil {
		return err
	}
	address := serverutil.AddressFromContext(ctx)
	isSecure := strings.HasPrefix(address, "https")
	return serverutil.SendCookie(ctx, &http.Cookie{
		Name:     UserTokenCookieName,
		Value:    token,
		Path:     "/",
		Secure:   isSecure,
		HttpOnly: true,
		Expires:  time.Now().Add(cookieMaxAge),
		SameSite: http.SameSiteLaxMode,
	})
}

// identityFromUserCookie decodes the user token cookie into an identity.
// Missing or undecodable cookies both report ErrNotFound so that requests
// fall through to other extractors, then to an unauthenticated view.
func (p *UserTokenPlugin) identityFromUserCookie(ctx context.Context) (auth.Identity, error) {
	cookies := serverutil.CookiesFromIncomingContext(ctx)
	c, ok := cookies[UserTokenCookieName]
	if !ok {
		return auth.Identity{}, errors.Mark(auth.ErrNotFound, 0)
	}
	payload, err := p.codec.Decode(c.Value)
	if err != nil {
		logging.Debugw(ctx, "usertoken: discarding undecodable token", "error", err)
		return auth.Identity{}, errors.Mark(auth.ErrNotFound, 0)
	}
	return auth.Identity{
		Subject:  payload.ID,
		Email:    payload.Email,
		Name:     payload.Name,
		Picture:  payload.Image,
		Provider: payload.Provider,
	}, nil
}
