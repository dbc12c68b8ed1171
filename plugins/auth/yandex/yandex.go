// Package yandex provides authentication via Yandex OAuth.
//
// Only the server-side authorization-code flow is supported. Profile data
// comes from the login.yandex.ru info endpoint; avatars are referenced by id
// and expanded into a full URL.
package yandex

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/oauth2/yandex"
	"google.golang.org/grpc/codes"

	"github.com/dpup/taskhub"
	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/plugins/auth"
	"github.com/dpup/taskhub/plugins/auth/oauth"
	"github.com/dpup/taskhub/plugins/storage"
)

const (
	// Constant name for the Yandex auth plugin.
	PluginName = "auth_yandex"

	// Constant name used as the auth provider in API requests.
	ProviderName = "yandex"

	infoEndpoint = "https://login.yandex.ru/info?format=json"
)

func init() {
	taskhub.RegisterConfigKeys(
		taskhub.ConfigKeyInfo{
			Key:         "auth.yandex.id",
			Description: "Yandex OAuth client ID",
			Type:        "string",
		},
		taskhub.ConfigKeyInfo{
			Key:         "auth.yandex.secret",
			Description: "Yandex OAuth client secret",
			Type:        "string",
		},
	)
}

// YandexOptions allow configuration of the YandexPlugin.
type YandexOption func(*YandexPlugin)

// WithClient configures the YandexPlugin with the given client id and secret.
func WithClient(id, secret string) YandexOption {
	return func(p *YandexPlugin) {
		p.flow.ClientID = id
		p.flow.ClientSecret = secret
	}
}

// Plugin for handling Yandex authentication.
func Plugin(opts ...YandexOption) *YandexPlugin {
	p := &YandexPlugin{
		flow: &oauth.Flow{
			Provider:     ProviderName,
			ClientID:     taskhub.ConfigString("auth.yandex.id"),
			ClientSecret: taskhub.ConfigString("auth.yandex.secret"),
			Endpoint:     yandex.Endpoint,
			Scopes:       []string{"login:email", "login:info", "login:avatar"},
			FetchProfile: fetchProfile,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// YandexPlugin for handling Yandex authentication.
type YandexPlugin struct {
	flow *oauth.Flow
}

// From taskhub.Plugin.
func (p *YandexPlugin) Name() string {
	return PluginName
}

// From taskhub.DependentPlugin.
func (p *YandexPlugin) Deps() []string {
	return []string{auth.PluginName, storage.PluginName}
}

// From taskhub.InitializablePlugin.
func (p *YandexPlugin) Init(ctx context.Context, r *taskhub.Registry) error {
	if err := p.flow.Validate(); err != nil {
		return err
	}

	sp, ok := r.Get(storage.PluginName).(*storage.StoragePlugin)
	if !ok {
		return errors.New("yandex: storage plugin required")
	}
	if err := sp.InitModel(&auth.User{}); err != nil {
		return errors.Wrap(err, 0).Append("yandex: failed to initialize user model")
	}
	p.flow.Resolver = auth.NewResolver(sp)

	ap := r.Get(auth.PluginName).(*auth.AuthPlugin)
	ap.AddLoginHandler(ProviderName, p.flow.HandleLogin)

	return nil
}

// infoResponse is the subset of the Yandex info endpoint we use.
type infoResponse struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	RealName        string `json:"real_name"`
	DisplayName     string `json:"display_name"`
	DefaultEmail    string `json:"default_email"`
	DefaultAvatarID string `json:"default_avatar_id"`
	IsAvatarEmpty   bool   `json:"is_avatar_empty"`
}

func fetchProfile(ctx context.Context, client *http.Client) (*oauth.Profile, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, infoEndpoint, nil)
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Codef(codes.Internal, "yandex: failed to fetch user info: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Codef(codes.Internal, "yandex: failed to get user info, status: %d", resp.StatusCode)
	}

	var info infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrap(err, 0).WithCode(codes.Internal).Append("yandex: failed to parse user info")
	}
	if info.ID == "" {
		return nil, errors.NewC("yandex: user info missing id", codes.Internal)
	}

	name := info.RealName
	if name == "" {
		name = info.DisplayName
	}
	if name == "" {
		name = info.Login
	}

	picture := ""
	if !info.IsAvatarEmpty && info.DefaultAvatarID != "" {
		picture = "https://avatars.yandex.net/get-yapic/" + info.DefaultAvatarID + "/islands-200"
	}

	return &oauth.Profile{
		ID:            info.ID,
		Email:         info.DefaultEmail,
		EmailVerified: info.DefaultEmail != "",
		Name:          name,
		Picture:       picture,
		Raw: auth.Profile{
			"display_name": name,
			"avatar":       picture,
		},
	}, nil
}
