// Package oauth implements the shared server-side OAuth2 login flow used by
// the provider plugins (google, github, yandex).
//
// The token exchange itself is delegated to golang.org/x/oauth2; this
// package wires the exchange into the login endpoint, verifies the signed
// state parameter, maps the provider's profile onto a persisted user, and
// mints the identity token. Providers supply their oauth2 endpoint, scopes,
// and a profile fetcher; everything else is common.
//
// The flow over the login endpoint:
//
//  1. A login request with no creds returns a redirect to the provider's
//     authorization page, carrying a signed state value.
//  2. The provider redirects back with `code` and `state`, which the client
//     forwards as creds to the login endpoint.
//  3. The code is exchanged for an access token, the profile is fetched,
//     and a persisted user is found or created by email.
package oauth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"

	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/auth"
	"github.com/dpup/taskhub/plugins/eventbus"
	"github.com/dpup/taskhub/serverutil"
)

// Profile is the normalized subset of an OAuth provider's user info that the
// login flow needs. Raw carries the provider's native field names for the
// claims merge.
type Profile struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Raw           auth.Profile
}

// ProfileFetcher retrieves the authenticated user's profile. The client is
// pre-authorized with the exchanged access token.
type ProfileFetcher func(ctx context.Context, client *http.Client) (*Profile, error)

// Flow holds the provider-specific pieces of an OAuth login.
type Flow struct {
	// Provider name, as used in login requests and the identity `idp` claim.
	Provider string

	// ClientID and ClientSecret identify the registered OAuth application.
	ClientID     string
	ClientSecret string

	// Endpoint is the provider's oauth2 endpoint from x/oauth2.
	Endpoint oauth2.Endpoint

	// Scopes requested during authorization.
	Scopes []string

	// AuthURLParams are extra parameters for the authorization redirect.
	AuthURLParams map[string]string

	// FetchProfile retrieves the user's profile after the token exchange.
	FetchProfile ProfileFetcher

	// Resolver persists users. Set during plugin Init.
	Resolver *auth.Resolver
}

// Validate reports configuration problems. Called from plugin Init so that a
// misconfigured provider fails at startup.
func (f *Flow) Validate() error {
	if f.ClientID == "" {
		return errors.Errorf("%s: config missing client id", f.Provider)
	}
	if f.ClientSecret == "" {
		return errors.Errorf("%s: config missing client secret", f.Provider)
	}
	return nil
}

// HandleLogin implements auth.LoginHandler for the provider.
func (f *Flow) HandleLogin(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error) {
	if req.Provider != f.Provider {
		return nil, errors.NewC(f.Provider+": login handler called for wrong provider", codes.InvalidArgument)
	}

	switch {
	case req.Creds["code"] != "":
		profile, err := f.exchangeCode(ctx, req.Creds["code"], req.Creds["state"])
		if err != nil {
			return nil, err
		}
		return f.AuthenticateProfile(ctx, profile, req)
	case len(req.Creds) == 0 || req.Creds["state"] != "":
		return f.redirectToProvider(ctx, req.RedirectUri, req.Creds["state"])
	default:
		return nil, errors.NewC(f.Provider+": unexpected credentials, a `code` is required", codes.InvalidArgument)
	}
}

func (f *Flow) config(ctx context.Context) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		Endpoint:     f.Endpoint,
		RedirectURL:  f.CallbackURL(ctx),
		Scopes:       f.Scopes,
	}
}

// CallbackURL is where the provider sends the user after authorization.
func (f *Flow) CallbackURL(ctx context.Context) string {
	return serverutil.AddressFromContext(ctx) + "/api/auth/" + f.Provider + "/callback"
}

// Trigger a redirect to the provider's authorization page. This results in
// an authorization code being sent back to the callback endpoint.
func (f *Flow) redirectToProvider(ctx context.Context, dest, state string) (*auth.LoginResponse, error) {
	wrappedState := NewState(f.ClientSecret, state, dest)

	opts := make([]oauth2.AuthCodeOption, 0, len(f.AuthURLParams))
	for k, v := range f.AuthURLParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}

	u := f.config(ctx).AuthCodeURL(wrappedState.Encode(), opts...)
	logging.Infof(ctx, "%s: redirecting to: %s", f.Provider, u)

	return &auth.LoginResponse{
		Issued:      false,
		RedirectUri: u,
	}, nil
}

// Exchange an authorization code for an access token and fetch the user's
// profile with it.
func (f *Flow) exchangeCode(ctx context.Context, code, rawState string) (*Profile, error) {
	if _, err := ParseState(f.ClientSecret, rawState); err != nil {
		return nil, errors.Codef(codes.InvalidArgument, "%s: failed to parse state: %s", f.Provider, err)
	}

	conf := f.config(ctx)
	logging.Infow(ctx, f.Provider+": starting token exchange", "redirect_url", conf.RedirectURL)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Codef(codes.Internal, "%s: token exchange failed: %s", f.Provider, err)
	}

	logging.Info(ctx, f.Provider+": fetching user profile")
	profile, err := f.FetchProfile(ctx, conf.Client(ctx, token))
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// AuthenticateProfile maps a verified profile to a persisted user, folds
// the provider metadata into the session claims, and issues the identity
// token. Exported for providers with a verification path outside the
// authorization-code flow, such as google ID tokens.
func (f *Flow) AuthenticateProfile(ctx context.Context, profile *Profile, req *auth.LoginRequest) (*auth.LoginResponse, error) {
	if profile.Email == "" {
		return nil, errors.NewC(f.Provider+": profile has no email", codes.FailedPrecondition)
	}

	user, err := f.Resolver.ResolveByEmail(ctx, profile.Email, profile.Name, profile.Picture)
	if err != nil {
		return nil, errors.Wrap(err, 0).Append(f.Provider + ": failed to resolve user")
	}

	claims := auth.MergeOnSignIn(auth.SessionClaims{Subject: user.ID}, f.Provider, profile.Raw)
	identity := auth.ProjectToSession(claims, auth.Identity{
		SessionID:     auth.GenerateSessionID(),
		AuthTime:      time.Now(),
		Email:         user.Email,
		EmailVerified: profile.EmailVerified,
		Name:          user.Name,
		Picture:       user.Image,
	})

	idt, err := auth.IdentityToken(ctx, identity)
	if err != nil {
		return nil, err
	}

	logging.Infow(ctx, f.Provider+": user authenticated", "subject", identity.Subject, "email", identity.Email)

	if bus := eventbus.FromContext(ctx); bus != nil {
		bus.Publish(auth.LoginEvent, auth.NewAuthEvent(identity))
	}

	if req.IssueToken {
		return &auth.LoginResponse{
			Issued: true,
			Token:  idt,
		}, nil
	}

	if err := auth.SendIdentityCookie(ctx, idt); err != nil {
		return nil, err
	}

	return &auth.LoginResponse{
		Issued:      true,
		RedirectUri: req.RedirectUri,
	}, nil
}
