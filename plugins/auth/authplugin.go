package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"time"

	"github.com/dpup/taskhub"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/eventbus"
	"github.com/dpup/taskhub/plugins/storage"
)

// Constant name for identifying the core auth plugin.
const PluginName = "auth"

// AuthOptions allow configuration of the AuthPlugin.
type AuthOption func(*AuthPlugin)

// WithSigningKey sets the signing key to use when signing JWT tokens.
func WithSigningKey(signingKey string) AuthOption {
	return func(p *AuthPlugin) {
		p.jwtSigningKey = signingKey
	}
}

// WithExpiration sets the expiration to use when signing JWT tokens.
func WithExpiration(expiration time.Duration) AuthOption {
	return func(p *AuthPlugin) {
		p.jwtExpiration = expiration
	}
}

// WithBlocklist configures a custom blocklist to use for token revocation.
// Tokens can be revoked by application code and will be revoked during
// Logout. The blocklist is checked during token validation.
func WithBlocklist(bl Blocklist) AuthOption {
	return func(p *AuthPlugin) {
		p.blocklist = bl
	}
}

// Plugin returns a new AuthPlugin.
func Plugin(opts ...AuthOption) *AuthPlugin {
	// Get signing key from config, or generate a random one with a warning.
	signingKey := taskhub.ConfigString("auth.signingKey")
	if signingKey == "" {
		signingKey = randomSigningKey()
		log.Println("⚠️  WARNING: Using randomly generated JWT signing key. " +
			"Tokens will be invalidated on server restart. " +
			"Set TH__AUTH__SIGNING_KEY environment variable or auth.signingKey in taskhub.yaml for production.")
	}

	ap := &AuthPlugin{
		authService:   &impl{},
		jwtSigningKey: signingKey,
		jwtExpiration: taskhub.ConfigMustDuration("auth.expiration"),
		identityExtractors: []IdentityExtractor{
			identityFromAuthHeader,
			identityFromCookie,
		},
	}
	for _, opt := range opts {
		opt(ap)
	}
	return ap
}

func randomSigningKey() string {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("failed to generate random signing key: " + err.Error())
	}
	return hex.EncodeToString(key)
}

// AuthPlugin exposes plugin interfaces that register and manage the
// AuthService and related functionality.
type AuthPlugin struct {
	authService *impl

	jwtSigningKey      string
	jwtExpiration      time.Duration
	blocklist          Blocklist
	bus                eventbus.EventBus
	identityExtractors []IdentityExtractor
}

// From taskhub.Plugin.
func (ap *AuthPlugin) Name() string {
	return PluginName
}

// From taskhub.OptionalDependentPlugin.
func (ap *AuthPlugin) OptDeps() []string {
	return []string{
		storage.PluginName,
		eventbus.PluginName,
	}
}

// From taskhub.InitializablePlugin.
func (ap *AuthPlugin) Init(ctx context.Context, r *taskhub.Registry) error {
	ap.initBlocklist(ctx, r)
	if bp, ok := r.Get(eventbus.PluginName).(*eventbus.EventBusPlugin); ok && bp != nil {
		ap.bus = bp
	}
	return nil
}

func (ap *AuthPlugin) initBlocklist(ctx context.Context, r *taskhub.Registry) {
	// If a blocklist hasn't been configured, and a storage plugin is
	// registered, then create a default blocklist for revoked tokens.
	if ap.blocklist == nil {
		store, ok := r.Get(storage.PluginName).(*storage.StoragePlugin)
		if store != nil && ok {
			logging.Info(ctx, "auth: initializing blocklist")
			if err := store.InitModel(&BlockedToken{}); err != nil {
				logging.Errorw(ctx, "auth: failed to initialize blocklist model", "error", err)
				return
			}
			ap.blocklist = NewBlocklist(store)
		}
	}
}

// Service returns the request-facing auth service.
func (ap *AuthPlugin) Service() AuthService {
	return ap.authService
}

// Injectors returns the request-scoped context injectors that make the
// plugin's configuration available to handlers. Pass them to
// taskhub.NewContext when constructing a request context.
func (ap *AuthPlugin) Injectors() []taskhub.ConfigInjector {
	return []taskhub.ConfigInjector{
		injectSigningKey(ap.jwtSigningKey),
		injectExpiration(ap.jwtExpiration),
		ap.injectBlocklist,
		ap.injectIdentityExtractors,
		ap.injectEventBus,
	}
}

// AddLoginHandler can be called by other plugins to register login handlers.
func (ap *AuthPlugin) AddLoginHandler(provider string, h LoginHandler) {
	ap.authService.AddLoginHandler(provider, h)
}

// AddIdentityExtractor can be called by other plugins to register identity
// extractors which will be used to authenticate requests.
//
// The AuthPlugin assumes that any identity returned by an extractor has been
// verified, and will not perform any additional verification. Extractors
// should return ErrNotFound if no identity is observed.
func (ap *AuthPlugin) AddIdentityExtractor(provider IdentityExtractor) {
	ap.identityExtractors = append(ap.identityExtractors, provider)
}

func (ap *AuthPlugin) injectBlocklist(ctx context.Context) context.Context {
	if ap.blocklist == nil {
		return ctx
	}
	return ContextWithBlocklist(ctx, ap.blocklist)
}

func (ap *AuthPlugin) injectIdentityExtractors(ctx context.Context) context.Context {
	return WithIdentityExtractors(ctx, ap.identityExtractors...)
}

func (ap *AuthPlugin) injectEventBus(ctx context.Context) context.Context {
	if ap.bus == nil {
		return ctx
	}
	return eventbus.WithEventBus(ctx, ap.bus)
}
