// Package google provides authentication via Google SSO.
//
// Two methods of authentication are supported:
//   - Client side via the Google SDK: the client retrieves an ID token and
//     passes it to the login endpoint as the `idtoken` cred, where it is
//     verified against Google's published keys.
//   - Server side via the OAuth2 authorization-code flow, shared with the
//     other OAuth providers. See the oauth package for the flow details.
package google

import (
	"context"
	"net/http"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
	"google.golang.org/grpc/codes"

	"github.com/dpup/taskhub"
	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/auth"
	"github.com/dpup/taskhub/plugins/auth/oauth"
	"github.com/dpup/taskhub/plugins/storage"
)

const (
	// Constant name for the Google auth plugin.
	PluginName = "auth_google"

	// Constant name used as the auth provider in API requests.
	ProviderName = "google"
)

func init() {
	taskhub.RegisterConfigKeys(
		taskhub.ConfigKeyInfo{
			Key:         "auth.google.id",
			Description: "Google OAuth2 client ID",
			Type:        "string",
		},
		taskhub.ConfigKeyInfo{
			Key:         "auth.google.secret",
			Description: "Google OAuth2 client secret",
			Type:        "string",
		},
	)
}

// GoogleOptions allow configuration of the GooglePlugin.
type GoogleOption func(*GooglePlugin)

// WithClient configures the GooglePlugin with the given client id and secret.
func WithClient(id, secret string) GoogleOption {
	return func(p *GooglePlugin) {
		p.flow.ClientID = id
		p.flow.ClientSecret = secret
	}
}

// Plugin for handling Google authentication.
func Plugin(opts ...GoogleOption) *GooglePlugin {
	p := &GooglePlugin{
		flow: &oauth.Flow{
			Provider:     ProviderName,
			ClientID:     taskhub.ConfigString("auth.google.id"),
			ClientSecret: taskhub.ConfigString("auth.google.secret"),
			Endpoint:     google.Endpoint,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/userinfo.email",
			},
			AuthURLParams: map[string]string{
				"access_type": "online",
				"prompt":      "select_account",
			},
			FetchProfile: fetchProfile,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GooglePlugin for handling Google authentication.
type GooglePlugin struct {
	flow *oauth.Flow
}

// From taskhub.Plugin.
func (p *GooglePlugin) Name() string {
	return PluginName
}

// From taskhub.DependentPlugin.
func (p *GooglePlugin) Deps() []string {
	return []string{auth.PluginName, storage.PluginName}
}

// From taskhub.InitializablePlugin.
func (p *GooglePlugin) Init(ctx context.Context, r *taskhub.Registry) error {
	if err := p.flow.Validate(); err != nil {
		return err
	}

	sp, ok := r.Get(storage.PluginName).(*storage.StoragePlugin)
	if !ok {
		return errors.New("google: storage plugin required")
	}
	if err := sp.InitModel(&auth.User{}); err != nil {
		return errors.Wrap(err, 0).Append("google: failed to initialize user model")
	}
	p.flow.Resolver = auth.NewResolver(sp)

	ap := r.Get(auth.PluginName).(*auth.AuthPlugin)
	ap.AddLoginHandler(ProviderName, p.handleLogin)

	return nil
}

func (p *GooglePlugin) handleLogin(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error) {
	// ID tokens come from the client-side SDK flow; everything else is the
	// shared authorization-code flow.
	if token := req.Creds["idtoken"]; token != "" {
		userInfo, err := p.handleIDToken(ctx, token)
		if err != nil {
			return nil, err
		}
		return p.flow.AuthenticateProfile(ctx, profileFromUserInfo(userInfo), req)
	}
	return p.flow.HandleLogin(ctx, req)
}

// Handle an ID Token retrieved via a clientside login. See:
// https://developers.google.com/identity/sign-in/web/backend-auth
func (p *GooglePlugin) handleIDToken(ctx context.Context, token string) (*UserInfo, error) {
	payload, err := idtoken.Validate(ctx, token, p.flow.ClientID)
	if err != nil {
		logging.Errorw(ctx, "google: failed to validate id token", "error", err)
		return nil, errors.Codef(codes.InvalidArgument, "google: failed to validate id token: %s", err)
	}
	return UserInfoFromClaims(payload.Claims)
}

func fetchProfile(ctx context.Context, client *http.Client) (*oauth.Profile, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, userInfoEndpoint, nil)
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Codef(codes.Internal, "google: failed to fetch user profile: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Codef(codes.Internal, "google: failed to get user info, status: %d", resp.StatusCode)
	}

	userInfo, err := UserInfoFromJSON(resp.Body)
	if err != nil {
		return nil, err
	}
	return profileFromUserInfo(userInfo), nil
}

func profileFromUserInfo(u *UserInfo) *oauth.Profile {
	return &oauth.Profile{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.IsConfirmed(),
		Name:          u.Name,
		Picture:       u.Picture,
		Raw: auth.Profile{
			"name":    u.Name,
			"picture": u.Picture,
		},
	}
}
