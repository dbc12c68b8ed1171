// Package telegram provides authentication via Telegram's login widget and
// Web App signed payloads.
//
// Telegram does not use OAuth. Instead the widget (or Web App) hands the
// client a set of user fields plus an HMAC signature computed with a secret
// derived from the bot token. The client posts those fields to the login
// endpoint as creds, the server verifies the signature, and a persisted user
// is found or created for the Telegram account. Telegram never supplies an
// email address, so users are keyed by a synthetic address derived from the
// Telegram numeric ID.
package telegram

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/dpup/taskhub"
	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/auth"
	"github.com/dpup/taskhub/plugins/eventbus"
	"github.com/dpup/taskhub/plugins/storage"
)

const (
	// Constant name for the Telegram auth plugin.
	PluginName = "auth_telegram"

	// Constant name used as the auth provider in API requests.
	ProviderName = "telegram"
)

// ErrVerification is returned when a signed payload fails signature
// verification. The message is deliberately generic so responses don't leak
// which check failed.
var ErrVerification = errors.NewC("telegram: login failed", codes.Unauthenticated)

func init() {
	taskhub.RegisterConfigKeys(
		taskhub.ConfigKeyInfo{
			Key:         "auth.telegram.botToken",
			Description: "Telegram bot token used to verify signed login payloads",
			Type:        "string",
		},
	)
}

// TelegramOptions allow configuration of the TelegramPlugin.
type TelegramOption func(*TelegramPlugin)

// WithBotToken sets the bot token used for signature verification,
// overriding the `auth.telegram.botToken` config value.
func WithBotToken(token string) TelegramOption {
	return func(p *TelegramPlugin) {
		p.botToken = token
	}
}

// Plugin for handling Telegram authentication.
func Plugin(opts ...TelegramOption) *TelegramPlugin {
	p := &TelegramPlugin{
		botToken: taskhub.ConfigString("auth.telegram.botToken"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TelegramPlugin for handling Telegram authentication.
type TelegramPlugin struct {
	botToken string
	resolver *auth.Resolver
}

// From taskhub.Plugin.
func (p *TelegramPlugin) Name() string {
	return PluginName
}

// From taskhub.DependentPlugin.
func (p *TelegramPlugin) Deps() []string {
	return []string{auth.PluginName, storage.PluginName}
}

// From taskhub.InitializablePlugin.
func (p *TelegramPlugin) Init(ctx context.Context, r *taskhub.Registry) error {
	if p.botToken == "" {
		return errors.New("telegram: config missing bot token")
	}

	sp, ok := r.Get(storage.PluginName).(*storage.StoragePlugin)
	if !ok {
		return errors.New("telegram: storage plugin required")
	}
	if err := sp.InitModel(&auth.User{}); err != nil {
		return errors.Wrap(err, 0).Append("telegram: failed to initialize user model")
	}
	p.resolver = auth.NewResolver(sp)

	ap := r.Get(auth.PluginName).(*auth.AuthPlugin)
	ap.AddLoginHandler(ProviderName, p.handleLogin)

	return nil
}

func (p *TelegramPlugin) handleLogin(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error) {
	if req.Provider != ProviderName {
		return nil, errors.NewC("telegram: login handler called for wrong provider", codes.InvalidArgument)
	}

	if !ValidateAuthData(AuthData(req.Creds), p.botToken) {
		logging.Warn(ctx, "telegram: rejected login with bad signature")
		return nil, errors.Mark(ErrVerification, 0)
	}

	payload := auth.SignedPayload{
		ID:        req.Creds["id"],
		FirstName: req.Creds["first_name"],
		LastName:  req.Creds["last_name"],
		Username:  req.Creds["username"],
		PhotoURL:  req.Creds["photo_url"],
		AuthDate:  req.Creds["auth_date"],
	}
	if payload.ID == "" {
		return nil, errors.NewC("telegram: credentials missing user id", codes.InvalidArgument)
	}

	user, err := p.resolver.ResolveSignedPayload(ctx, payload)
	if err != nil {
		return nil, errors.Wrap(err, 0).Append("telegram: failed to resolve user")
	}

	identity := auth.Identity{
		Provider:  ProviderName,
		SessionID: auth.GenerateSessionID(),
		AuthTime:  time.Now(),
		Subject:   user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Picture:   user.Image,
	}

	idt, err := auth.IdentityToken(ctx, identity)
	if err != nil {
		return nil, err
	}

	logging.Infow(ctx, "telegram: user authenticated", "subject", identity.Subject, "email", identity.Email)

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
