// Package github provides authentication via GitHub OAuth.
//
// GitHub only supports the server-side authorization-code flow. The user's
// primary verified email is fetched from the emails endpoint since the
// profile's public email field is often unset.
package github

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"golang.org/x/oauth2/github"
	"google.golang.org/grpc/codes"

	"github.com/dpup/taskhub"
	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/plugins/auth"
	"github.com/dpup/taskhub/plugins/auth/oauth"
	"github.com/dpup/taskhub/plugins/storage"
)

const (
	// Constant name for the GitHub auth plugin.
	PluginName = "auth_github"

	// Constant name used as the auth provider in API requests.
	ProviderName = "github"

	userEndpoint   = "https://api.github.com/user"
	emailsEndpoint = "https://api.github.com/user/emails"
)

func init() {
	taskhub.RegisterConfigKeys(
		taskhub.ConfigKeyInfo{
			Key:         "auth.github.id",
			Description: "GitHub OAuth client ID",
			Type:        "string",
		},
		taskhub.ConfigKeyInfo{
			Key:         "auth.github.secret",
			Description: "GitHub OAuth client secret",
			Type:        "string",
		},
	)
}

// GitHubOptions allow configuration of the GitHubPlugin.
type GitHubOption func(*GitHubPlugin)

// WithClient configures the GitHubPlugin with the given client id and secret.
func WithClient(id, secret string) GitHubOption {
	return func(p *GitHubPlugin) {
		p.flow.ClientID = id
		p.flow.ClientSecret = secret
	}
}

// Plugin for handling GitHub authentication.
func Plugin(opts ...GitHubOption) *GitHubPlugin {
	p := &GitHubPlugin{
		flow: &oauth.Flow{
			Provider:     ProviderName,
			ClientID:     taskhub.ConfigString("auth.github.id"),
			ClientSecret: taskhub.ConfigString("auth.github.secret"),
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
			FetchProfile: fetchProfile,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GitHubPlugin for handling GitHub authentication.
type GitHubPlugin struct {
	flow *oauth.Flow
}

// From taskhub.Plugin.
func (p *GitHubPlugin) Name() string {
	return PluginName
}

// From taskhub.DependentPlugin.
func (p *GitHubPlugin) Deps() []string {
	return []string{auth.PluginName, storage.PluginName}
}

// From taskhub.InitializablePlugin.
func (p *GitHubPlugin) Init(ctx context.Context, r *taskhub.Registry) error {
	if err := p.flow.Validate(); err != nil {
		return err
	}

	sp, ok := r.Get(storage.PluginName).(*storage.StoragePlugin)
	if !ok {
		return errors.New("github: storage plugin required")
	}
	if err := sp.InitModel(&auth.User{}); err != nil {
		return errors.Wrap(err, 0).Append("github: failed to initialize user model")
	}
	p.flow.Resolver = auth.NewResolver(sp)

	ap := r.Get(auth.PluginName).(*auth.AuthPlugin)
	ap.AddLoginHandler(ProviderName, p.flow.HandleLogin)

	return nil
}

// userResponse is the subset of the GitHub user endpoint we use.
type userResponse struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// emailResponse is one entry from the GitHub emails endpoint.
type emailResponse struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func fetchProfile(ctx context.Context, client *http.Client) (*oauth.Profile, error) {
	var user userResponse
	if err := getJSON(ctx, client, userEndpoint, &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, errors.NewC("github: user info missing id", codes.Internal)
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	email := user.Email
	emailVerified := false
	if email == "" {
		// The public profile email is optional; find the primary address.
		var emails []emailResponse
		if err := getJSON(ctx, client, emailsEndpoint, &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary {
				email = e.Email
				emailVerified = e.Verified
				break
			}
		}
	}

	return &oauth.Profile{
		ID:            strconv.FormatInt(user.ID, 10),
		Email:         email,
		EmailVerified: emailVerified,
		Name:          name,
		Picture:       user.AvatarURL,
		Raw: auth.Profile{
			"name":    name,
			"picture": user.AvatarURL,
		},
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return errors.Codef(codes.Internal, "github: request to %s failed: %s", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Codef(codes.Internal, "github: request to %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, 0).WithCode(codes.Internal).Append("github: failed to parse response")
	}
	return nil
}
